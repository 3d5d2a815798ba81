// Package otherus is the authentication and identity core of the Other
// Us member directory: email/password registration and login, OAuth2
// login through Google and GitHub, stateless JWT bearer tokens, and the
// shared user-record store behind profile and search operations.
//
// The package is organized around a few narrow contracts:
//
//   - UserStore, IdentityStore and StateStore describe the backing
//     store. The stores/redis package is the production implementation
//     (one shared Redis keyspace across replicas), stores/mem backs
//     tests and dev runs, and stores/gorm targets SQL databases.
//   - Provider abstracts one external OAuth provider; implementations
//     live in the oauth2 package.
//   - Auth orchestrates the above into register/login/OAuth/profile
//     operations, and Server exposes them as a JSON HTTP API.
//
// Typical wiring:
//
//	store := mem.New()
//	issuer := otherus.NewIssuer(secret, "otherus", time.Hour)
//	auth := otherus.NewAuth(store, store, store, issuer)
//	auth.RegisterProvider(oauth2.NewGoogle(id, secret, redirect, 0))
//	http.ListenAndServe(addr, otherus.NewServer(auth, callbackURL).Handler())
package otherus
