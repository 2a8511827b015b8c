// Package memstore is an in-memory cdp.Store, used by cmd/cdpd's
// single-process mode and its boot self-check. It carries no
// durability guarantee: every key lives in a map behind a mutex for the
// life of the process.
package memstore

import (
	"sync"

	"github.com/covenantlabs/cdpcore/internal/cdp"
)

// Store is a mutex-guarded in-memory implementation of cdp.Store.
type Store struct {
	mu sync.Mutex

	basket *cdp.Basket

	positions   map[string][]cdp.Position
	nextID      uint64
	volatility  map[string]*cdp.VolatilityRecord
	prices      map[string]*cdp.StoredPrice
	redemptions map[uint32][]cdp.RedemptionBucketEntry
	freezeTimer int64
	redemptionQuotas map[string]cdp.RedemptionQuotaNow

	liquidationProps    map[string]*cdp.LiquidationPropagation
	closePositionProps  map[string]*cdp.ClosePositionPropagation
}

// New constructs an empty Store.
func New() *Store {
	return &Store{
		positions:           make(map[string][]cdp.Position),
		volatility:          make(map[string]*cdp.VolatilityRecord),
		prices:              make(map[string]*cdp.StoredPrice),
		redemptions:         make(map[uint32][]cdp.RedemptionBucketEntry),
		liquidationProps:    make(map[string]*cdp.LiquidationPropagation),
		closePositionProps:  make(map[string]*cdp.ClosePositionPropagation),
		redemptionQuotas:    make(map[string]cdp.RedemptionQuotaNow),
	}
}

func assetKey(a cdp.AssetInfo) string {
	return a.String()
}

func (s *Store) GetBasket() (*cdp.Basket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.basket, nil
}

func (s *Store) PutBasket(b *cdp.Basket) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.basket = b
	return nil
}

func (s *Store) GetPositions(owner string) ([]cdp.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	positions, ok := s.positions[owner]
	if !ok {
		return nil, nil
	}
	out := make([]cdp.Position, len(positions))
	copy(out, positions)
	return out, nil
}

func (s *Store) PutPositions(owner string, positions []cdp.Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(positions) == 0 {
		delete(s.positions, owner)
		return nil
	}
	s.positions[owner] = positions
	return nil
}

func (s *Store) NextPositionID() (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	return s.nextID, nil
}

func (s *Store) GetVolatility(asset cdp.AssetInfo) (*cdp.VolatilityRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.volatility[assetKey(asset)], nil
}

func (s *Store) PutVolatility(asset cdp.AssetInfo, record *cdp.VolatilityRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.volatility[assetKey(asset)] = record
	return nil
}

func (s *Store) GetStoredPrice(asset cdp.AssetInfo) (*cdp.StoredPrice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.prices[assetKey(asset)], nil
}

func (s *Store) PutStoredPrice(asset cdp.AssetInfo, price *cdp.StoredPrice) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prices[assetKey(asset)] = price
	return nil
}

func (s *Store) GetRedemptionBucket(premium uint32) ([]cdp.RedemptionBucketEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	bucket := s.redemptions[premium]
	out := make([]cdp.RedemptionBucketEntry, len(bucket))
	copy(out, bucket)
	return out, nil
}

func (s *Store) PutRedemptionBucket(premium uint32, entries []cdp.RedemptionBucketEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(entries) == 0 {
		delete(s.redemptions, premium)
		return nil
	}
	s.redemptions[premium] = entries
	return nil
}

func (s *Store) GetFreezeTimer() (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.freezeTimer, nil
}

func (s *Store) PutFreezeTimer(t int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.freezeTimer = t
	return nil
}

func (s *Store) GetRedemptionQuota(redeemer string) (cdp.RedemptionQuotaNow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.redemptionQuotas[redeemer], nil
}

func (s *Store) PutRedemptionQuota(redeemer string, quota cdp.RedemptionQuotaNow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.redemptionQuotas[redeemer] = quota
	return nil
}

func (s *Store) GetLiquidationPropagation(id string) (*cdp.LiquidationPropagation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.liquidationProps[id], nil
}

func (s *Store) PutLiquidationPropagation(id string, rec *cdp.LiquidationPropagation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.liquidationProps[id] = rec
	return nil
}

func (s *Store) DeleteLiquidationPropagation(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.liquidationProps, id)
	return nil
}

func (s *Store) GetClosePositionPropagation(id string) (*cdp.ClosePositionPropagation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closePositionProps[id], nil
}

func (s *Store) PutClosePositionPropagation(id string, rec *cdp.ClosePositionPropagation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closePositionProps[id] = rec
	return nil
}

func (s *Store) DeleteClosePositionPropagation(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.closePositionProps, id)
	return nil
}
