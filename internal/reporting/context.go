package reporting

import (
	"context"
	"maps"
	"time"
)

type reportingMetaContextKey struct{}

type ReportingMeta struct {
	tags   map[string]string
	extras map[string]string
	// Upstream account id of the player the work is about, if any
	playerID  string
	startedAt time.Time
}

func (m ReportingMeta) clone() ReportingMeta {
	tags := maps.Clone(m.tags)
	if tags == nil {
		tags = make(map[string]string)
	}
	extras := maps.Clone(m.extras)
	if extras == nil {
		extras = make(map[string]string)
	}
	return ReportingMeta{
		tags:      tags,
		extras:    extras,
		playerID:  m.playerID,
		startedAt: m.startedAt,
	}
}

func MetaFromContext(ctx context.Context) ReportingMeta {
	meta, _ := ctx.Value(reportingMetaContextKey{}).(ReportingMeta)
	return meta.clone()
}

// updateMeta stores a modified copy so contexts further up the chain are unaffected
func updateMeta(ctx context.Context, update func(meta *ReportingMeta)) context.Context {
	meta := MetaFromContext(ctx)
	update(&meta)
	return context.WithValue(ctx, reportingMetaContextKey{}, meta)
}

func setStartedAtInContext(ctx context.Context, startedAt time.Time) context.Context {
	return updateMeta(ctx, func(meta *ReportingMeta) {
		meta.startedAt = startedAt
	})
}

func AddExtrasToContext(ctx context.Context, extras map[string]string) context.Context {
	return updateMeta(ctx, func(meta *ReportingMeta) {
		maps.Copy(meta.extras, extras)
	})
}

func AddTagsToContext(ctx context.Context, tags map[string]string) context.Context {
	return updateMeta(ctx, func(meta *ReportingMeta) {
		maps.Copy(meta.tags, tags)
	})
}

func SetPlayerIDInContext(ctx context.Context, playerID string) context.Context {
	return updateMeta(ctx, func(meta *ReportingMeta) {
		meta.playerID = playerID
	})
}
