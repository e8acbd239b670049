// Package client talks to a minikv server.
//
// Client wraps one downstream connection and is not safe for concurrent
// use. Manager makes such an exclusive backend usable from many goroutines:
// a single owning goroutine (Run) holds the backend and executes requests
// taken from a bounded queue, replying to each on its own one-shot channel.
//
//	mgr, tx := client.NewManager(c, client.DefaultQueueCapacity)
//	go mgr.Run()
//
//	tx2 := tx.Clone()
//	go func() {
//		defer tx2.Close()
//		_ = tx2.Set(ctx, "k", []byte("v"))
//	}()
//	v, ok, err := tx.Get(ctx, "k")
//	tx.Close()
//
// Run returns once every Sender has been closed and the queued requests
// have been served.
package client
