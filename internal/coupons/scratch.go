package coupons

import (
	"sync"

	pkgerrors "github.com/angelmondragon/coupontracker-backend/pkg/errors"
)

// FirstScratchID separates ad hoc coupons from catalog ids.
const FirstScratchID int64 = 10000

// ScratchCoupon is an ad hoc coupon kept in process memory for manual testing.
type ScratchCoupon struct {
	ID             int64  `json:"id"`
	Name           string `json:"name"`
	Discount       string `json:"discount"`
	ExpirationDate string `json:"expiration_date"`
	Store          string `json:"store"`
	Status         string `json:"status"`
	Code           string `json:"code"`
	StandardPrice  string `json:"standard_price"`
	RegisteredBy   string `json:"registered_by"`
	AdditionalInfo string `json:"additional_info"`
	PaymentStatus  string `json:"payment_status"`
	Used           bool   `json:"used"`
}

// ScratchStore holds scratch coupons. It is never persisted and never mixed into catalog listings.
type ScratchStore struct {
	mu     sync.Mutex
	nextID int64
	items  []ScratchCoupon
}

func NewScratchStore() *ScratchStore {
	return &ScratchStore{nextID: FirstScratchID}
}

func (s *ScratchStore) Create(c ScratchCoupon) ScratchCoupon {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.ID = s.nextID
	s.nextID++
	s.items = append(s.items, c)
	return c
}

func (s *ScratchStore) List() []ScratchCoupon {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ScratchCoupon, len(s.items))
	copy(out, s.items)
	return out
}

func (s *ScratchStore) Update(id int64, c ScratchCoupon) (ScratchCoupon, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, err := s.indexOf(id)
	if err != nil {
		return ScratchCoupon{}, err
	}
	c.ID = id
	s.items[i] = c
	return c, nil
}

func (s *ScratchStore) Delete(id int64) (ScratchCoupon, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, err := s.indexOf(id)
	if err != nil {
		return ScratchCoupon{}, err
	}
	removed := s.items[i]
	s.items = append(s.items[:i], s.items[i+1:]...)
	return removed, nil
}

// Use marks the coupon used and paid.
func (s *ScratchStore) Use(id int64) (ScratchCoupon, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, err := s.indexOf(id)
	if err != nil {
		return ScratchCoupon{}, err
	}
	s.items[i].Used = true
	s.items[i].PaymentStatus = PaymentPaid
	return s.items[i], nil
}

// indexOf must be called with mu held.
func (s *ScratchStore) indexOf(id int64) (int, error) {
	for i := range s.items {
		if s.items[i].ID == id {
			return i, nil
		}
	}
	if id < FirstScratchID {
		return -1, pkgerrors.New(pkgerrors.CodeValidation, "catalog coupons cannot be modified")
	}
	return -1, pkgerrors.New(pkgerrors.CodeNotFound, "coupon not found")
}
