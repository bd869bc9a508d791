// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package source

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	xglog "github.com/ManuGH/reelfeed/internal/log"
	"github.com/ManuGH/reelfeed/internal/metrics"
	"github.com/ManuGH/reelfeed/internal/netutil"
)

// Surface is the write side of a video surface: the resolver only ever
// assigns or clears its source.
type Surface interface {
	SetSource(url string)
	ClearSource()
}

// AttachmentHandle ties a media source to a surface. Release tears the
// binding down and is safe to call more than once; every unmount path
// must call it before the surface goes away.
type AttachmentHandle interface {
	Release()
}

// ManifestFetcher retrieves a master playlist body. Nil disables the
// variant probe and the surface receives the manifest URL unmodified.
type ManifestFetcher func(ctx context.Context, url string) (string, error)

// ResolverConfig configures source resolution.
type ResolverConfig struct {
	Policy netutil.MediaPolicy
	Fetch  ManifestFetcher
	// MaxBandwidth caps variant selection in bits per second, 0 = unconstrained.
	MaxBandwidth int64
}

// Resolver binds media URLs to surfaces according to Decide.
type Resolver struct {
	policy       netutil.MediaPolicy
	fetch        ManifestFetcher
	maxBandwidth int64
	logger       zerolog.Logger
}

// NewResolver creates a resolver.
func NewResolver(cfg ResolverConfig) *Resolver {
	return &Resolver{
		policy:       cfg.Policy,
		fetch:        cfg.Fetch,
		maxBandwidth: cfg.MaxBandwidth,
		logger:       xglog.WithComponent("source-resolver"),
	}
}

// Attach validates the URL, decides the strategy and binds the source to
// the surface. The caller owns the returned handle and must release it
// before re-attaching or unmounting.
func (r *Resolver) Attach(ctx context.Context, surface Surface, mediaURL string) (AttachmentHandle, error) {
	normalized, err := netutil.ValidateMediaURL(mediaURL, r.policy)
	if err != nil {
		metrics.RecordResolverDecision(string(KindNone), string(ReasonPolicyRejected))
		return nil, fmt.Errorf("media url rejected: %w", err)
	}

	decision := Decide(normalized)
	metrics.RecordResolverDecision(string(decision.Kind), string(decision.Reason))

	r.logger.Debug().
		Str(xglog.FieldMediaURL, normalized).
		Str(xglog.FieldSource, string(decision.Kind)).
		Str(xglog.FieldReason, string(decision.Reason)).
		Msg("source resolved")

	switch decision.Kind {
	case KindAdaptive:
		return r.attachAdaptive(ctx, surface, normalized)
	default:
		surface.SetSource(normalized)
		return &progressiveAttachment{surface: surface}, nil
	}
}

func (r *Resolver) attachAdaptive(ctx context.Context, surface Surface, masterURL string) (AttachmentHandle, error) {
	att := &AdaptiveAttachment{surface: surface, masterURL: masterURL}

	if r.fetch == nil {
		surface.SetSource(masterURL)
		return att, nil
	}

	manifest, err := r.fetch(ctx, masterURL)
	if err != nil {
		// The probe is an optimization. On failure the surface still
		// gets the master URL and the player picks its own rendition.
		r.logger.Warn().Err(err).Str(xglog.FieldMediaURL, masterURL).Msg("manifest probe failed")
		surface.SetSource(masterURL)
		return att, nil
	}

	variants, err := ExtractVariants(manifest)
	if err != nil {
		r.logger.Warn().Err(err).Str(xglog.FieldMediaURL, masterURL).Msg("manifest parse failed")
		surface.SetSource(masterURL)
		return att, nil
	}

	variant, ok := SelectVariant(variants, r.maxBandwidth)
	if !ok {
		surface.SetSource(masterURL)
		return att, nil
	}

	resolved, err := ResolveVariantURI(masterURL, variant.URI)
	if err != nil {
		r.logger.Warn().Err(err).Str(xglog.FieldMediaURL, masterURL).Msg("variant uri invalid")
		surface.SetSource(masterURL)
		return att, nil
	}

	att.variant = variant
	att.probed = true
	r.logger.Debug().
		Str(xglog.FieldMediaURL, resolved).
		Int64("bandwidth", variant.Bandwidth).
		Str("resolution", variant.Resolution).
		Msg("variant selected")
	surface.SetSource(resolved)
	return att, nil
}

// progressiveAttachment binds a direct file URL.
type progressiveAttachment struct {
	once    sync.Once
	surface Surface
}

func (a *progressiveAttachment) Release() {
	a.once.Do(func() {
		a.surface.ClearSource()
		metrics.RecordAttachmentReleased(string(KindProgressive))
	})
}

// AdaptiveAttachment binds a manifest-driven streaming session.
type AdaptiveAttachment struct {
	once      sync.Once
	surface   Surface
	masterURL string
	variant   Variant
	probed    bool
}

// Variant reports the rendition chosen by the probe, false when the
// probe was skipped or failed.
func (a *AdaptiveAttachment) Variant() (Variant, bool) {
	return a.variant, a.probed
}

func (a *AdaptiveAttachment) Release() {
	a.once.Do(func() {
		a.surface.ClearSource()
		metrics.RecordAttachmentReleased(string(KindAdaptive))
	})
}

var (
	_ AttachmentHandle = (*progressiveAttachment)(nil)
	_ AttachmentHandle = (*AdaptiveAttachment)(nil)
)
