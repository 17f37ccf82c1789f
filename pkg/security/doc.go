/*
Package security groups the relay's credential handling.

# Secret Management

Secrets (the upstream API key, the sibling signing secret, the link cache
sealing key, the admin key) are resolved by name through layered
providers:

	manager := secrets.NewManager([]secrets.Provider{
		secrets.NewEnvProvider("PFW_SECRET_"),
		secrets.NewDotenvProvider(".env"),
	}, 5*time.Minute)

	apiKey, err := manager.Get(ctx, "uspto-api-key")

# Sibling Authentication

Sibling services sign registrations with short-lived HS256 tokens
(package siblingauth) bound to the document they register.

# Admin Authentication

Operator endpoints accept a shared key compared in constant time
(package auth).

# Upstream TLS

Extra trusted CAs and protocol limits for upstream connections live in
package tls.
*/
package security
