package tapsync

import (
	"context"
	"net/url"
	"strconv"

	"go.uber.org/zap"

	ftErrors "github.com/ajitpratap0/formtap/pkg/errors"
	"github.com/ajitpratap0/formtap/pkg/streams"
)

// GetStreamsToSync returns every selected stream plus the parent of any
// selected child, deduplicated, in registry order. A child cannot sync
// without its parent's page loop running.
func GetStreamsToSync(reg *streams.Registry, selected map[string]bool) []string {
	runnable := make(map[string]bool, len(selected))
	for id := range selected {
		if !selected[id] {
			continue
		}
		runnable[id] = true
		if d, ok := reg.Get(id); ok && d.Parent != "" {
			runnable[d.Parent] = true
		}
	}

	out := make([]string, 0, len(runnable))
	for _, id := range reg.IDs() {
		if runnable[id] {
			out = append(out, id)
		}
	}
	return out
}

// writeSchemas emits the stream's schema when selected and recurses into
// children, mirroring the bookmark recursion's selection gating.
func (e *Engine) writeSchemas(stream string) error {
	if e.selected[stream] {
		entry, ok := e.catalog.Entry(stream)
		if !ok {
			return ftErrors.Newf(ftErrors.ErrorTypeConfig,
				"stream %s selected but missing from catalog", stream)
		}
		if err := e.emitter.WriteSchema(stream, entry.Schema, entry.KeyProperties); err != nil {
			return ftErrors.Wrap(err, ftErrors.ErrorTypeData, "failed to write schema")
		}
	}
	for _, child := range e.registry.Children(stream) {
		if err := e.writeSchemas(child); err != nil {
			return err
		}
	}
	return nil
}

// ListFormIDs pages through the live form list and returns every form id
// the API knows about.
func (e *Engine) ListFormIDs(ctx context.Context) ([]string, error) {
	d, _ := e.registry.Get(streams.StreamForms)
	reqURL := e.client.BuildURL(d.Endpoint)

	var ids []string
	for page := 1; ; page++ {
		params := url.Values{}
		params.Set("page_size", strconv.Itoa(e.client.FormPageSize()))
		params.Set("page", strconv.Itoa(page))

		resp, err := e.client.Request(ctx, reqURL, params)
		if err != nil {
			return nil, err
		}
		items, ok := resp[d.DataKey].([]interface{})
		if !ok {
			break
		}
		for _, raw := range items {
			if item, ok := raw.(map[string]interface{}); ok {
				if id, ok := item["id"].(string); ok {
					ids = append(ids, id)
				}
			}
		}
		if toInt(resp["page_count"]) <= page {
			break
		}
	}
	return ids, nil
}

// ValidateFormIDs cross-checks the configured form ids against the live
// API list. A configured id the API does not know is a fatal configuration
// error; an empty configuration means every live form.
func (e *Engine) ValidateFormIDs(ctx context.Context, configured []string) ([]string, error) {
	live, err := e.ListFormIDs(ctx)
	if err != nil {
		return nil, err
	}

	if len(configured) == 0 {
		e.logger.Info("no forms configured, syncing all forms",
			zap.Int("count", len(live)))
		return live, nil
	}

	known := make(map[string]bool, len(live))
	for _, id := range live {
		known[id] = true
	}
	for _, id := range configured {
		if !known[id] {
			return nil, ftErrors.Newf(ftErrors.ErrorTypeConfig,
				"form %s not returned by the API; check the forms config value", id)
		}
	}
	return configured, nil
}

// Sync runs the whole extraction: schema writes, the global forms stream
// once, and every other runnable top-level stream once per form id. Any
// error aborts the run; the last persisted state is the resumption point.
func (e *Engine) Sync(ctx context.Context, formIDs []string) error {
	formIDs, err := e.ValidateFormIDs(ctx, formIDs)
	if err != nil {
		return err
	}

	runnable := GetStreamsToSync(e.registry, e.selected)
	e.logger.Info("starting sync",
		zap.Strings("streams", runnable),
		zap.Int("forms", len(formIDs)))

	for _, id := range runnable {
		d, _ := e.registry.Get(id)
		if d.Parent != "" {
			// Children are synced inside their parent's page loop.
			continue
		}
		if err := e.writeSchemas(id); err != nil {
			return err
		}

		switch {
		case !d.FormScoped:
			if err := e.SyncForms(ctx, d); err != nil {
				return err
			}
		case d.ReplicationMethod == streams.ReplicationFullTable:
			for _, formID := range formIDs {
				if err := e.SyncFullTable(ctx, d, formID); err != nil {
					return err
				}
			}
		default:
			for _, formID := range formIDs {
				if err := e.SyncIncremental(ctx, d, formID); err != nil {
					return err
				}
			}
		}
	}

	for stream, count := range e.counts {
		e.logger.Info("stream finished",
			zap.String("stream", stream),
			zap.Int("records", count))
	}
	return nil
}

// toValues converts a flat param map to url.Values.
func toValues(params map[string]string) url.Values {
	v := url.Values{}
	for k, val := range params {
		v.Set(k, val)
	}
	return v
}

// toInt coerces the JSON number shapes a decoded response can carry.
func toInt(v interface{}) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	case int64:
		return int(n)
	case string:
		if i, err := strconv.Atoi(n); err == nil {
			return i
		}
	}
	return 0
}
