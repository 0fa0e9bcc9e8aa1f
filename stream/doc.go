// Package stream provides lazy, pull-based operators over sequences of
// values such as log lines read from a server-sent event feed.
//
// Nothing runs until a terminal (Collect, ForEach) pulls. Every stage pulls
// from the one before it, so a slow consumer slows the source down.
//
//	lines := stream.FlatMap(events, parseLines)
//	hits := stream.Filter(lines, func(l LogLine) bool { return l.Contains(kw) })
//	err := stream.ForEach(ctx, hits, print)
package stream
