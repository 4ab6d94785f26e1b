// Package bluebox implements the HTTP tunnel transport used when a direct
// socket to the server cannot be opened.
//
// The client POSTs form-encoded payloads to a servlet. The first request is a
// handshake answered with "#" followed by a session id; every later request
// carries the session id and either a real payload or a "poll" placeholder.
// Replies hold zero or more newline-separated messages.
//
//	conn, err := bluebox.Dial(ctx, bluebox.Config{
//	    URL:       "http://127.0.0.1:8080",
//	    OnMessage: handle,
//	    OnClose:   lost,
//	})
//	if err != nil {
//	    return err
//	}
//	conn.Send(msg)
//	conn.StartPolling()
package bluebox
