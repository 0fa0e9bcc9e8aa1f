// Package bootstrap runs a ylai process: it validates the typed config,
// installs the logger, starts registered components in order, runs the
// lifecycle hooks, prints a startup summary and shuts everything down on
// SIGINT, SIGTERM or context cancellation.
//
//	app, err := bootstrap.NewApp(&cfg)
//	if err != nil {
//	    return err
//	}
//	_ = app.RegisterComponent(gw.Component())
//	return app.Run(ctx)
//
// RunTask is the variant for finite work, such as a CLI command that needs
// an in-process backend for the duration of one pipeline run.
package bootstrap
