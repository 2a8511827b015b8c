package cdp

import (
	"context"

	"cosmossdk.io/math"
)

// mockStore is a bare-bones in-package Store, deliberately kept separate
// from memstore.Store (which depends on this package and so cannot be
// imported back into its own tests without a cycle).
type mockStore struct {
	basket      *Basket
	positions   map[string][]Position
	nextID      uint64
	volatility  map[string]*VolatilityRecord
	prices      map[string]*StoredPrice
	redemptions map[uint32][]RedemptionBucketEntry
	freezeTimer int64
	liqProps    map[string]*LiquidationPropagation
	closeProps  map[string]*ClosePositionPropagation
	redemptionQuotas map[string]RedemptionQuotaNow
}

func newMockStore() *mockStore {
	return &mockStore{
		positions:   make(map[string][]Position),
		volatility:  make(map[string]*VolatilityRecord),
		prices:      make(map[string]*StoredPrice),
		redemptions: make(map[uint32][]RedemptionBucketEntry),
		liqProps:    make(map[string]*LiquidationPropagation),
		closeProps:  make(map[string]*ClosePositionPropagation),
		redemptionQuotas: make(map[string]RedemptionQuotaNow),
	}
}

func (s *mockStore) GetRedemptionQuota(redeemer string) (RedemptionQuotaNow, error) {
	return s.redemptionQuotas[redeemer], nil
}

func (s *mockStore) PutRedemptionQuota(redeemer string, quota RedemptionQuotaNow) error {
	s.redemptionQuotas[redeemer] = quota
	return nil
}

func (s *mockStore) GetBasket() (*Basket, error)     { return s.basket, nil }
func (s *mockStore) PutBasket(b *Basket) error        { s.basket = b; return nil }

func (s *mockStore) GetPositions(owner string) ([]Position, error) {
	p, ok := s.positions[owner]
	if !ok {
		return nil, nil
	}
	out := make([]Position, len(p))
	copy(out, p)
	return out, nil
}

func (s *mockStore) PutPositions(owner string, positions []Position) error {
	if len(positions) == 0 {
		delete(s.positions, owner)
		return nil
	}
	s.positions[owner] = positions
	return nil
}

func (s *mockStore) NextPositionID() (uint64, error) {
	s.nextID++
	return s.nextID, nil
}

func (s *mockStore) GetVolatility(a AssetInfo) (*VolatilityRecord, error) { return s.volatility[a.String()], nil }
func (s *mockStore) PutVolatility(a AssetInfo, r *VolatilityRecord) error {
	s.volatility[a.String()] = r
	return nil
}

func (s *mockStore) GetStoredPrice(a AssetInfo) (*StoredPrice, error) { return s.prices[a.String()], nil }
func (s *mockStore) PutStoredPrice(a AssetInfo, p *StoredPrice) error {
	s.prices[a.String()] = p
	return nil
}

func (s *mockStore) GetRedemptionBucket(premium uint32) ([]RedemptionBucketEntry, error) {
	return s.redemptions[premium], nil
}
func (s *mockStore) PutRedemptionBucket(premium uint32, entries []RedemptionBucketEntry) error {
	if len(entries) == 0 {
		delete(s.redemptions, premium)
		return nil
	}
	s.redemptions[premium] = entries
	return nil
}

func (s *mockStore) GetFreezeTimer() (int64, error)  { return s.freezeTimer, nil }
func (s *mockStore) PutFreezeTimer(t int64) error     { s.freezeTimer = t; return nil }

func (s *mockStore) GetLiquidationPropagation(id string) (*LiquidationPropagation, error) {
	return s.liqProps[id], nil
}
func (s *mockStore) PutLiquidationPropagation(id string, rec *LiquidationPropagation) error {
	s.liqProps[id] = rec
	return nil
}
func (s *mockStore) DeleteLiquidationPropagation(id string) error {
	delete(s.liqProps, id)
	return nil
}

func (s *mockStore) GetClosePositionPropagation(id string) (*ClosePositionPropagation, error) {
	return s.closeProps[id], nil
}
func (s *mockStore) PutClosePositionPropagation(id string, rec *ClosePositionPropagation) error {
	s.closeProps[id] = rec
	return nil
}
func (s *mockStore) DeleteClosePositionPropagation(id string) error {
	delete(s.closeProps, id)
	return nil
}

// mockOracle serves fixed prices from a map, keyed by asset string form.
type mockOracle struct {
	prices map[string]math.LegacyDec
}

func newMockOracle() *mockOracle {
	return &mockOracle{prices: make(map[string]math.LegacyDec)}
}

func (m *mockOracle) set(asset AssetInfo, price math.LegacyDec) {
	m.prices[asset.String()] = price
}

func (m *mockOracle) Price(_ context.Context, asset AssetInfo, _ uint32) (math.LegacyDec, uint32, error) {
	p, ok := m.prices[asset.String()]
	if !ok {
		return decZero, 0, ErrNoRepaymentPrice
	}
	return p, 6, nil
}

// mockPool never decomposes any LP shares; tests that need LP pricing
// configure it directly.
type mockPool struct {
	legs map[string][]AssetInfo
	bals map[string][]math.Int
	tot  map[string]math.Int
}

func newMockPool() *mockPool {
	return &mockPool{legs: map[string][]AssetInfo{}, bals: map[string][]math.Int{}, tot: map[string]math.Int{}}
}

func (m *mockPool) Decompose(_ context.Context, poolID string) (math.Int, []math.Int, []AssetInfo, error) {
	return m.tot[poolID], m.bals[poolID], m.legs[poolID], nil
}

// mockToken records every mint/burn/transfer call for assertions.
type mockToken struct {
	minted    map[string]math.Int
	burned    map[string]math.Int
	transfers map[string]math.Int
}

func newMockToken() *mockToken {
	return &mockToken{minted: map[string]math.Int{}, burned: map[string]math.Int{}, transfers: map[string]math.Int{}}
}

func (m *mockToken) Mint(_ context.Context, denom string, amount math.Int, to string) error {
	m.minted[denom+"/"+to] = amount
	return nil
}

func (m *mockToken) Burn(_ context.Context, denom string, amount math.Int, from string) error {
	m.burned[denom+"/"+from] = amount
	return nil
}

func (m *mockToken) Transfer(_ context.Context, asset AssetInfo, amount math.Int, to string) error {
	m.transfers[asset.String()+"/"+to] = amount
	return nil
}

// mockRouter records every ExecuteSwaps call for assertions; it never fails
// unless swapErr is set.
type mockRouter struct {
	swaps   []mockSwap
	swapErr error
}

type mockSwap struct {
	TokenIn  AssetInfo
	AmountIn math.Int
	TokenOut string
}

func newMockRouter() *mockRouter {
	return &mockRouter{}
}

func (m *mockRouter) ExecuteSwaps(_ context.Context, tokenIn AssetInfo, amountIn math.Int, tokenOut string, _ math.LegacyDec) error {
	if m.swapErr != nil {
		return m.swapErr
	}
	m.swaps = append(m.swaps, mockSwap{TokenIn: tokenIn, AmountIn: amountIn, TokenOut: tokenOut})
	return nil
}

// mockFeeDestination records every deposited fee for assertions.
type mockFeeDestination struct {
	deposited map[string]math.Int
}

func newMockFeeDestination() *mockFeeDestination {
	return &mockFeeDestination{deposited: map[string]math.Int{}}
}

func (f *mockFeeDestination) DepositFee(_ context.Context, denom string, amount math.Int) error {
	f.deposited[denom] = amount
	return nil
}


func dec(s string) math.LegacyDec {
	d, err := math.LegacyNewDecFromStr(s)
	if err != nil {
		panic(err)
	}
	return d
}

func usdAsset(denom string) AssetInfo {
	return AssetInfo{Kind: AssetNative, Denom: denom}
}

// newTestBasket builds a two-asset basket with generous caps, suitable as a
// shared starting point across component tests.
func newTestBasket() *Basket {
	atom := usdAsset("uatom")
	osmo := usdAsset("uosmo")
	return &Basket{
		CollateralTypes: []CAsset{
			{Info: atom, Amount: intZero, MaxBorrowLTV: dec("0.40"), MaxLTV: dec("0.50")},
			{Info: osmo, Amount: intZero, MaxBorrowLTV: dec("0.30"), MaxLTV: dec("0.40")},
		},
		SupplyCaps: []SupplyCap{
			{Info: atom, CurrentSupply: intZero, CapRatio: decOne, DebtTotal: intZero, VolatilityIndex: decOne},
			{Info: osmo, CurrentSupply: intZero, CapRatio: decOne, DebtTotal: intZero, VolatilityIndex: decOne},
		},
		CreditDenom:        "ucdp",
		CreditPrice:        CreditPrice{Value: decOne, Source: "peg"},
		BaseInterestRate:   dec("0.02"),
		DesiredDebtCapUtil: dec("0.70"),
		PendingRevenue:     intZero,
		CPCMarginOfError:   dec("0.02"),
		OracleSet:          true,
		DebtMinimum:        math.NewInt(1),
	}
}

type testEnv struct {
	store      *mockStore
	oracle     *mockOracle
	pool       *mockPool
	token      *mockToken
	router     *mockRouter
	fee        *mockFeeDestination
	kernel     *PriceKernel
	rates      *RateModel
	risk       *RiskEngine
	revenue    *RevenueRouter
	redemption *RedemptionMarket
	ledger     *Ledger
}

func newTestEnv() *testEnv {
	store := newMockStore()
	oracle := newMockOracle()
	// UpdateBasketTally prices every collateral type on newTestBasket, not
	// just the ones a test deposits, so uosmo needs a price too. Tests that
	// care about its value set their own.
	oracle.set(usdAsset("uosmo"), decOne)
	pool := newMockPool()
	token := newMockToken()
	router := newMockRouter()
	fee := newMockFeeDestination()
	kernel := NewPriceKernel(store, oracle, pool, 3600)
	rates := NewRateModel(kernel)
	risk := NewRiskEngine(kernel, store)
	revenue := NewRevenueRouter(token, fee)
	redemption := NewRedemptionMarket(store, kernel, token, revenue)
	ledger := NewLedger(store, kernel, risk, rates, token, redemption, router)
	return &testEnv{
		store: store, oracle: oracle, pool: pool, token: token, router: router, fee: fee,
		kernel: kernel, rates: rates, risk: risk, revenue: revenue, redemption: redemption, ledger: ledger,
	}
}
