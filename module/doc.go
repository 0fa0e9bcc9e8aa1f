// Package module is the page-module registry.
//
// A Module renders itself into a Root. The built-in catalog (catalog.yaml)
// declares one RouteModule per console section with the backend routes it
// calls; Actions dispatches those routes through httpclient:
//
//	reg := module.DefaultRegistry()
//	m := reg.MountOrPlaceholder("module.crawler", "", module.Options{})
//	fmt.Println(m.Root.HTML())
//
//	env, err := reg.Call(ctx, client, "crawler", "start", map[string]string{"id": "42"}, nil)
//
// Names resolve with or without the "module." prefix. Unknown names fail with
// a MODULE_NOT_FOUND *errors.AppError; MountOrPlaceholder renders a card
// linking to the module's standalone page instead.
package module
