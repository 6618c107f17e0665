// Package session is the client half of Gatehouse: it keeps the current
// access token in a Store, decides locally whether it has expired, and
// publishes an authenticated signal that UI code can observe.
//
// The manager decodes the token without checking its signature. It
// trusts its own stored value, and the result is a display hint only;
// the server re-verifies every request.
//
//	store, _ := session.OpenFileStore("")
//	mgr := session.NewManager(store)
//	mgr.Authenticated().Subscribe(func(ok bool) { ... })
//	client := &http.Client{Transport: session.NewTransport(mgr, nil)}
package session
