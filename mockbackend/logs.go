package mockbackend

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ylai/autoplatform/console"
	"github.com/ylai/autoplatform/sse"
)

// LogPattern matches every client of the log stream.
const LogPattern = "logs:*"

// LogEvent builds the i-th mock log event: {"lines": [...]}. Every third
// event also carries an AI_OPTIMIZE suggestion.
func LogEvent(i int, now time.Time) []byte {
	lines := []any{fmt.Sprintf("[%s] mock log line %d", now.Format("15:04:05"), i)}
	if i%3 == 0 {
		result, _ := json.Marshal(map[string]any{"data": map[string]any{
			"summary": "示例建议",
			"fixes":   []console.Fix{{Title: "修复提示", Steps: []string{"检查接口", "添加鉴权", "重试"}}},
		}})
		lines = append(lines, console.Optimize{Type: console.TypeAIOptimize, Result: result, ErrorText: "mock error"})
	}
	data, _ := json.Marshal(map[string]any{"lines": lines})
	return data
}

// streamLogs publishes a LogEvent every interval until ctx ends. Events
// published with no client connected are simply lost.
func streamLogs(ctx context.Context, pub sse.Publisher, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for i := 0; ; i++ {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			pub.Publish(LogPattern, LogEvent(i, now))
		}
	}
}
