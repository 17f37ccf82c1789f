/*
Package tls builds the client TLS settings used for upstream document
requests.

Deployments behind an intercepting proxy can add their CA bundle on top
of the system roots, and the minimum protocol version is configurable:

	cfg := tls.ClientConfig{CAFile: "/etc/relay/corp-ca.pem", MinVersion: "1.2"}
	tlsConfig, err := cfg.ToTLSConfig()
*/
package tls
