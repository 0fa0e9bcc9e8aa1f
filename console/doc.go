// Package console holds the dashboard services of the admin console: the
// backend health probe, the live log tail, error reporting, task docs,
// feature gating, scheduler and policy settings and AI pipeline
// suggestions. Every call goes through an *httpclient.Client, so the
// bearer token, envelope handling and retries are shared with the rest of
// the console.
package console
