/*
Package authsdk is a Go client for the rollcall authentication service.

SDKClient covers the public endpoints and opens Sessions:

	client := authsdk.NewSDKClient("http://localhost:8080")

	_, err := client.Signup(ctx, authsdk.SignupRequest{
		Username: "alice",
		Email:    "alice@example.com",
		Password: "Str0ng!Pass",
		Role:     "hr",
	})

	session, err := client.AuthenticateWithPassword(ctx, "alice", "Str0ng!Pass")

A Session refreshes its access token shortly before expiry, so long-lived
callers only need to keep the Session around:

	me, err := session.Profile(ctx)
	_, err = session.Access(ctx, "hr")
	err = session.Authorize(ctx, "payroll", "approve")
	err = session.Logout(ctx)

Failed calls return *APIError. Compare with errors.Is against the predefined
errors, which match on status and code:

	if errors.Is(err, authsdk.ErrInvalidGrant) {
		// wrong username or password
	}

The same APIError type is used by the server to write error bodies.
*/
package authsdk
