// Package auth manages the console session: the bearer token, the user's
// role, and the optional demo and dev auto-login sessions.
//
//	mgr, _ := auth.NewManager(auth.Config{}, store)
//	client, _ := httpclient.New(cfg, httpclient.WithTokenSource(mgr))
//	mgr.UseClient(client)
//	res, err := mgr.Login(ctx, "admin", "admin")
//
// Subpackages jwt and password issue and check credentials on the server side.
package auth
