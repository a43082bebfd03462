// Package device supervises sign controllers.
//
// A Supervisor owns one controller link. Its Run loop performs the session
// handshake, retries it with a constant backoff, loads the sign
// configuration, then polls the controller with heartbeats and executes
// queued commands between polls. Three consecutive heartbeat failures (by
// default) tear the session down, fail every waiting command with
// dispatch.ErrConnectionLost and start again.
//
// Commands are methods on Supervisor. They are safe to call from any
// goroutine and return the decoded reply, a *dispatch.RejectError when the
// controller refuses, or dispatch.ErrTimeout.
//
//	sup := device.New(transport.NewTCP("10.20.0.15:4001", 0), device.Options{
//	    Name:           "gantry-01",
//	    Address:        "01",
//	    SeedOffset:     "20",
//	    PasswordOffset: "5A5A",
//	})
//	go sup.Run(ctx)
//	if err := sup.WaitReady(ctx); err != nil {
//	    return err
//	}
//	err := sup.DisplayFrame(ctx, 1, 5)
//
// A Manager builds supervisors from the configuration registry and
// publishes their events to subscribers such as the HTTP websocket feed.
package device
