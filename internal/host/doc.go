// Package host provides the runtime the integrations plug into.
//
// It owns:
//   - Loop: the single goroutine that owns all shared integration state.
//     Other goroutines hand work to it with Submit (fire-and-forget) or
//     Call (wait for completion).
//   - Bus: named events fired on the loop and fanned out to listeners.
//   - EntityRegistry: entities created by integration platforms.
//   - Manager: the config entry lifecycle (setup, retry, unload, reload,
//     remove), persisted through an EntryStore.
//
// Setup and unload never run on the loop. The Manager runs them on its own
// worker goroutines or on the caller's goroutine, so an integration may
// block on network I/O and use Loop.Call to touch its state.
//
// Usage:
//
//	loop := host.NewLoop(logger)
//	go loop.Run(ctx)
//
//	bus := host.NewBus()
//	unsubscribe := bus.Subscribe(host.MatchAll, func(e host.Event) { ... })
//	defer unsubscribe()
//
//	mgr, err := host.NewManager(host.ManagerOptions{Store: store, Logger: logger})
//	mgr.Register(integration)
//	mgr.Load(ctx)
//	mgr.SetupAll(ctx)
package host
