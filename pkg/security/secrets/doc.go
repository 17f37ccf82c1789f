// Package secrets loads the relay's credentials: the upstream API key, the
// sibling service-token secret and the link-cache sealing key.
//
// # Providers
//
//   - EnvProvider: "uspto-api-key" is read from USPTO_API_KEY (plus prefix)
//   - FileProvider: one file per secret, mode 0600 or 0400, optional
//     fsnotify watch so a rotated key is picked up without a restart
//   - DotenvProvider: a .env file parsed with godotenv, without touching
//     the process environment
//
// # Manager
//
// Manager tries providers in order and caches hits for a short TTL:
//
//	mgr := secrets.NewManager([]secrets.Provider{
//	    secrets.NewEnvProvider(""),
//	    secrets.NewDotenvProvider(".env"),
//	}, 5*time.Minute)
//	key, err := mgr.Get(ctx, "uspto-api-key")
//
// Secret values are never logged. Names are logged in redacted form.
package secrets
