/*
Package deskapi holds the wire types of the deskd control API and a small
client for it.

The control API is served by `deskd serve` on a local address. It exposes
the session layer for scripting and debugging: session state, login and
logout, the realtime connection and its subscriptions, and the
notification inbox.

	client := deskapi.NewClient("http://127.0.0.1:7878", token)

	sess, err := client.Session(ctx)
	if err != nil {
		return err
	}
	if !sess.LoggedIn {
		sess, err = client.Login(ctx, deskapi.LoginRequest{Email: email, Password: password})
	}

	// Open the realtime connection and watch the inbox.
	rt, err := client.Connect(ctx)
	inbox, err := client.Notifications(ctx)

Errors returned by the server decode into *APIError, so callers can use
errors.As and inspect Code.
*/
package deskapi
