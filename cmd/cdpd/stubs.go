package main

import (
	"context"

	"cosmossdk.io/math"

	"github.com/covenantlabs/cdpcore/internal/cdp"
)

// The collaborator bodies below are explicitly out of scope (oracle price
// discovery, token custody, AMM execution, stability-pool accounting, and
// liquidation-queue bid matching all live outside this module). These stubs
// exist only so cdpd can boot its engine wiring and run the self-check;
// production deployments wire the real collaborators in their place.

type stubTokenProxy struct{}

func (stubTokenProxy) Mint(context.Context, string, math.Int, string) error     { return nil }
func (stubTokenProxy) Burn(context.Context, string, math.Int, string) error     { return nil }
func (stubTokenProxy) Transfer(context.Context, cdp.AssetInfo, math.Int, string) error {
	return nil
}

type stubOracle struct{ prices map[string]math.LegacyDec }

func newStubOracle() *stubOracle { return &stubOracle{prices: make(map[string]math.LegacyDec)} }

func (o *stubOracle) set(asset cdp.AssetInfo, price math.LegacyDec) {
	o.prices[asset.String()] = price
}

func (o *stubOracle) Price(_ context.Context, asset cdp.AssetInfo, _ uint32) (math.LegacyDec, uint32, error) {
	if p, ok := o.prices[asset.String()]; ok {
		return p, 6, nil
	}
	return math.LegacyOneDec(), 6, nil
}

type stubPoolQuerier struct{}

func (stubPoolQuerier) Decompose(context.Context, string) (math.Int, []math.Int, []cdp.AssetInfo, error) {
	return math.ZeroInt(), nil, nil, nil
}

type stubPauseView struct{}

func (stubPauseView) IsPaused(string) bool { return false }
