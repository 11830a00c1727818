// Package shutdown runs ordered cleanup hooks on SIGINT or SIGTERM.
//
//	h := shutdown.NewHandler(30*time.Second, logger)
//	h.OnShutdown("storage", store.Close)
//	h.OnShutdown("http", srv.Shutdown)
//	_ = h.Wait(ctx) // http stops first, then storage
package shutdown
