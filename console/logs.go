package console

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"

	"github.com/ylai/autoplatform/httpclient"
	"github.com/ylai/autoplatform/httpclient/sse"
	"github.com/ylai/autoplatform/logger"
	"github.com/ylai/autoplatform/stream"
)

// TypeAIOptimize marks a log entry that carries an AI fix suggestion.
const TypeAIOptimize = "AI_OPTIMIZE"

// Fix is one suggested remedy inside an AI_OPTIMIZE entry.
type Fix struct {
	Title string   `json:"title"`
	Steps []string `json:"steps"`
}

// Optimize is an AI_OPTIMIZE log entry.
type Optimize struct {
	Type      string          `json:"type"`
	Result    json.RawMessage `json:"result,omitempty"`
	ErrorText string          `json:"error_text,omitempty"`
}

type optimizeResult struct {
	Summary string `json:"summary"`
	Fixes   []Fix  `json:"fixes"`
}

// Suggestion digs the summary and fixes out of Result, which backends
// nest either as {data: {...}} or {data: {data: {...}}}.
func (o *Optimize) Suggestion() (summary string, fixes []Fix) {
	var outer struct {
		Data json.RawMessage `json:"data"`
	}
	raw := o.Result
	for range 2 {
		if json.Unmarshal(raw, &outer) != nil || len(outer.Data) == 0 {
			break
		}
		raw, outer.Data = outer.Data, nil
	}
	var r optimizeResult
	_ = json.Unmarshal(raw, &r)
	return r.Summary, r.Fixes
}

// LogLine is one entry of the live log feed. Either Text or Optimize is
// set; Raw keeps the entry as received.
type LogLine struct {
	Text     string
	Optimize *Optimize
	Raw      json.RawMessage
}

// String renders l for a log box: plain lines as-is, objects as JSON.
func (l LogLine) String() string {
	if l.Optimize == nil && l.Text != "" {
		return l.Text
	}
	if len(l.Raw) > 0 {
		return string(l.Raw)
	}
	return l.Text
}

// Contains is a case-insensitive keyword match on the rendered line.
func (l LogLine) Contains(keyword string) bool {
	keyword = strings.ToLower(strings.TrimSpace(keyword))
	return keyword == "" || strings.Contains(strings.ToLower(l.String()), keyword)
}

// ParseLogEvent splits one SSE payload into log lines. A payload that is
// not a {lines: [...]} document becomes a single text line.
func ParseLogEvent(data string) []LogLine {
	var payload struct {
		Lines []json.RawMessage `json:"lines"`
	}
	if err := json.Unmarshal([]byte(data), &payload); err != nil || payload.Lines == nil {
		return []LogLine{{Text: data}}
	}
	out := make([]LogLine, 0, len(payload.Lines))
	for _, raw := range payload.Lines {
		var text string
		if json.Unmarshal(raw, &text) == nil {
			out = append(out, LogLine{Text: text, Raw: raw})
			continue
		}
		line := LogLine{Raw: raw}
		var opt Optimize
		if json.Unmarshal(raw, &opt) == nil && opt.Type == TypeAIOptimize {
			line.Optimize = &opt
		}
		out = append(out, line)
	}
	return out
}

// TailLogs opens the live log feed and streams its lines, keeping only
// those containing filter when it is non-empty. The token, if any, is sent
// as a query parameter. The stream ends when ctx is done or the server
// closes the feed.
func (c *Console) TailLogs(ctx context.Context, filter string) (*stream.Stream[LogLine], error) {
	var opts []httpclient.RequestOption
	if token := c.client.Token(); token != "" {
		opts = append(opts, httpclient.WithQuery("token", token))
	}
	resp, err := c.client.Stream(ctx, PathLogs, opts...)
	if err != nil {
		return nil, err
	}
	if resp.SSE == nil {
		_ = resp.Close()
		return nil, &httpclient.Error{StatusCode: resp.StatusCode, Kind: httpclient.KindInvalidRequest,
			Message: "log feed is not an event stream"}
	}
	c.log.Info("log tail opened", logger.Fields("filter", filter))

	events := stream.FromFunc(func(context.Context) (*sse.Event, bool, error) {
		ev, err := resp.SSE.Next()
		switch {
		case errors.Is(err, io.EOF):
			return nil, false, nil
		case err != nil && ctx.Err() != nil:
			return nil, false, ctx.Err()
		case err != nil:
			return nil, false, err
		}
		return ev, true, nil
	}, resp.Close)

	lines := stream.FlatMap(events, func(_ context.Context, ev *sse.Event) ([]LogLine, error) {
		return ParseLogEvent(ev.Data), nil
	})
	if strings.TrimSpace(filter) == "" {
		return lines, nil
	}
	return stream.Filter(lines, func(l LogLine) bool { return l.Contains(filter) }), nil
}
