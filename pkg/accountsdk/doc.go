/*
Package accountsdk is a Go client for the accounts service.

# SDKClient vs Session

  - SDKClient: public and service-to-service endpoints, and Login
  - Session: operations made on behalf of a signed-in user

	client := accountsdk.NewSDKClient("https://accounts.example.com")

	// One-time setup, needs the internal API key
	admin, err := client.InitAdmin(ctx, internalKey, accountsdk.InitAdminRequest{
		Email:    "admin@example.com",
		Password: "s3cret-pass",
	})

	session, err := client.Login(ctx, accountsdk.LoginRequest{
		Email:    "admin@example.com",
		Password: "s3cret-pass",
	})

	self, err := session.Self(ctx)

# Errors

Every non-success response is returned as *APIError. Use errors.As to get at
the status code, the error code and the per-field validation messages.
*/
package accountsdk
