// Package tapsync runs the extraction: per-stream sync algorithms
// (full-table and incremental), the page loop driving the HTTP client,
// child-stream fan-out, bookmark advancement, and the orchestration across
// streams and form ids.
package tapsync

import (
	"context"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/ajitpratap0/formtap/pkg/catalog"
	"github.com/ajitpratap0/formtap/pkg/client"
	"github.com/ajitpratap0/formtap/pkg/config"
	"github.com/ajitpratap0/formtap/pkg/emitter"
	ftErrors "github.com/ajitpratap0/formtap/pkg/errors"
	"github.com/ajitpratap0/formtap/pkg/logger"
	"github.com/ajitpratap0/formtap/pkg/metrics"
	"github.com/ajitpratap0/formtap/pkg/state"
	"github.com/ajitpratap0/formtap/pkg/streams"
)

// Engine drives one extraction run. It is single-threaded: pages are
// processed strictly in cursor order and items in response order, because
// both the running-maximum bookmark and the next page's cursor depend on
// the last item of the current page being processed last.
type Engine struct {
	client   *client.Client
	registry *streams.Registry
	catalog  *catalog.Catalog
	state    *state.State
	emitter  emitter.Emitter

	selected map[string]bool
	filters  map[string]*catalog.FieldFilter

	startDate        string
	fetchUncompleted bool

	counts map[string]int
	logger *zap.Logger

	// now is a hook for tests.
	now func() time.Time
}

// New assembles an engine over its collaborators. The catalog supplies
// stream selection and the per-stream field filters applied at emission.
func New(c *client.Client, reg *streams.Registry, cat *catalog.Catalog, st *state.State, em emitter.Emitter, cfg *config.Config) *Engine {
	if st == nil {
		st = state.New()
	}
	filters := make(map[string]*catalog.FieldFilter)
	for _, id := range reg.IDs() {
		if entry, ok := cat.Entry(id); ok {
			filters[id] = entry.FieldFilter()
		}
	}
	return &Engine{
		client:           c,
		registry:         reg,
		catalog:          cat,
		state:            st,
		emitter:          em,
		selected:         cat.SelectedStreams(),
		filters:          filters,
		startDate:        cfg.StartDate,
		fetchUncompleted: cfg.FetchUncompletedForms,
		counts:           make(map[string]int),
		logger:           logger.With(zap.String("component", "sync")),
		now:              time.Now,
	}
}

// State returns the live state map.
func (e *Engine) State() *state.State { return e.state }

// Counts returns per-stream emitted record counts for the run so far.
func (e *Engine) Counts() map[string]int { return e.counts }

// emit shapes a record through the stream's field filter and writes it.
func (e *Engine) emit(stream string, record map[string]interface{}, extractedAt time.Time) error {
	if f, ok := e.filters[stream]; ok {
		record = f.Filter(record)
	}
	if err := e.emitter.WriteRecord(stream, record, extractedAt); err != nil {
		return ftErrors.Wrap(err, ftErrors.ErrorTypeData, "failed to write record")
	}
	e.counts[stream]++
	metrics.RecordsEmitted.WithLabelValues(stream).Inc()
	return nil
}

// persistBookmark writes the running maximum into state (recursing through
// children, gated by selection) and checkpoints the whole state map.
func (e *Engine) persistBookmark(stream, formID, value string) error {
	e.state.WriteBookmark(e.registry, stream, e.selected, formID, value)
	metrics.BookmarksWritten.WithLabelValues(stream).Inc()
	if err := e.emitter.WriteState(e.state); err != nil {
		return ftErrors.Wrap(err, ftErrors.ErrorTypeData, "failed to write state")
	}
	return nil
}

// SyncFullTable fetches a form-scoped collection once and emits it as a
// single batch. A response missing the stream's data key means the form
// legitimately has no items: logged, zero records, no error.
func (e *Engine) SyncFullTable(ctx context.Context, d *streams.Descriptor, formID string) error {
	resp, err := e.client.Request(ctx, e.client.BuildURL(d.EndpointFor(formID)), nil)
	if err != nil {
		return err
	}

	items, ok := resp[d.DataKey].([]interface{})
	if !ok {
		e.logger.Info("data key absent from response, nothing to emit",
			zap.String("stream", d.ID),
			zap.String("form_id", formID),
			zap.String("data_key", d.DataKey))
		return nil
	}

	extractedAt := e.now()
	for _, raw := range items {
		item, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		rec := d.Enrich(item, streams.Context{FormID: formID})
		if err := e.emit(d.ID, rec, extractedAt); err != nil {
			return err
		}
	}
	return nil
}

// SyncIncremental runs the incremental algorithm for one stream/form unit,
// including the optional uncompleted-submissions pass, then persists the
// final bookmark.
func (e *Engine) SyncIncremental(ctx context.Context, d *streams.Descriptor, formID string) error {
	// Snapshot before the first pass so the uncompleted pass reads
	// bookmark floors the completed pass has not yet advanced.
	snapshot := e.state.Snapshot()

	maxBookmark, err := e.syncIncrementalPass(ctx, d, formID, e.state, nil)
	if err != nil {
		return err
	}

	if d.ID == streams.StreamLandings && e.fetchUncompleted {
		uncompletedMax, err := e.syncIncrementalPass(ctx, d, formID, snapshot,
			map[string]string{"completed": "false"})
		if err != nil {
			return err
		}
		if uncompletedMax > maxBookmark {
			maxBookmark = uncompletedMax
		}
	}

	return e.persistBookmark(d.ID, formID, maxBookmark)
}

// syncIncrementalPass pages through one window of the stream. floorState is
// the state snapshot bookmarks are read from; paramOverrides replace the
// descriptor's fixed params for this pass. It returns the running-maximum
// replication-key value across everything emitted, never lower than the
// resolved starting bookmark.
func (e *Engine) syncIncrementalPass(ctx context.Context, d *streams.Descriptor, formID string, floorState *state.State, paramOverrides map[string]string) (string, error) {
	now := e.now().UTC().Format(time.RFC3339)

	ownBookmark := floorState.GetBookmark(d.ID, formID, d.ReplicationKey, e.startDate)
	sinceBookmark := floorState.GetMinBookmark(e.registry, d.ID, e.selected, now, e.startDate, formID)
	maxBookmark := sinceBookmark

	sinceTime, err := time.Parse(time.RFC3339, sinceBookmark)
	if err != nil {
		return "", ftErrors.Newf(ftErrors.ErrorTypeConfig,
			"invalid start date or stored bookmark %q", sinceBookmark)
	}

	params := make(map[string]string)
	for k, v := range d.Params {
		params[k] = v
	}
	for k, v := range paramOverrides {
		params[k] = v
	}
	params["page_size"] = strconv.Itoa(e.client.PageSize())
	params["since"] = strconv.FormatInt(sinceTime.Unix(), 10)

	childFloors := make(map[string]string, len(d.Children))
	for _, childID := range d.Children {
		key := e.registry.ReplicationKey(childID)
		childFloors[childID] = floorState.GetBookmark(childID, formID, key, e.startDate)
	}

	reqURL := e.client.BuildURL(d.EndpointFor(formID))
	for {
		resp, err := e.client.Request(ctx, reqURL, toValues(params))
		if err != nil {
			return "", err
		}

		items, ok := resp[d.DataKey].([]interface{})
		if !ok || len(items) == 0 {
			break
		}

		extractedAt := e.now()
		var lastToken string
		for _, raw := range items {
			item, ok := raw.(map[string]interface{})
			if !ok {
				continue
			}
			if token, ok := item["token"].(string); ok {
				lastToken = token
			}

			repValue, _ := item[d.ReplicationKey].(string)
			if e.selected[d.ID] && repValue >= ownBookmark {
				rec := d.Enrich(item, streams.Context{FormID: formID})
				if err := e.emit(d.ID, rec, extractedAt); err != nil {
					return "", err
				}
				if repValue > maxBookmark {
					maxBookmark = repValue
				}
			}

			if d.ChildDataKey == "" {
				continue
			}
			for _, childID := range d.Children {
				if !e.selected[childID] || repValue < childFloors[childID] {
					continue
				}
				embedded, ok := item[d.ChildDataKey].([]interface{})
				if !ok || len(embedded) == 0 {
					continue
				}
				child, _ := e.registry.Get(childID)
				for _, rawChild := range embedded {
					childItem, ok := rawChild.(map[string]interface{})
					if !ok {
						continue
					}
					rec := child.Enrich(childItem, streams.Context{FormID: formID, Parent: item})
					if err := e.emit(childID, rec, extractedAt); err != nil {
						return "", err
					}
				}
				if repValue > maxBookmark {
					maxBookmark = repValue
				}
			}
		}

		// Cursor chaining: the next page is addressed by the last item's
		// token, not by a page number.
		if toInt(resp["page_count"]) <= 1 || lastToken == "" {
			break
		}
		delete(params, "since")
		params["before"] = lastToken
	}

	return maxBookmark, nil
}

// SyncForms runs the global forms stream: page-number pagination, no form
// scope, bookmark persisted after every page.
func (e *Engine) SyncForms(ctx context.Context, d *streams.Descriptor) error {
	now := e.now().UTC().Format(time.RFC3339)

	ownBookmark := e.state.GetBookmark(d.ID, "", d.ReplicationKey, e.startDate)
	sinceBookmark := e.state.GetMinBookmark(e.registry, d.ID, e.selected, now, e.startDate, "")
	maxBookmark := sinceBookmark

	reqURL := e.client.BuildURL(d.EndpointFor(""))
	for page := 1; ; page++ {
		params := map[string]string{
			"page_size": strconv.Itoa(e.client.FormPageSize()),
			"page":      strconv.Itoa(page),
		}
		resp, err := e.client.Request(ctx, reqURL, toValues(params))
		if err != nil {
			return err
		}

		items, ok := resp[d.DataKey].([]interface{})
		if !ok {
			break
		}

		extractedAt := e.now()
		for _, raw := range items {
			item, ok := raw.(map[string]interface{})
			if !ok {
				continue
			}
			repValue, _ := item[d.ReplicationKey].(string)
			if e.selected[d.ID] && repValue >= ownBookmark {
				rec := d.Enrich(item, streams.Context{FormID: ""})
				if err := e.emit(d.ID, rec, extractedAt); err != nil {
					return err
				}
				if repValue > maxBookmark {
					maxBookmark = repValue
				}
			}
		}

		if err := e.persistBookmark(d.ID, "", maxBookmark); err != nil {
			return err
		}

		if toInt(resp["page_count"]) <= page {
			break
		}
	}
	return nil
}
