package middleware

import "github.com/AdhityaRamadhanus/fasthttpcors"

// Cors is applied to the control API only, listeners pass requests through untouched.
var Cors MiddleWare

func init() {
	corsHandler := fasthttpcors.NewCorsHandler(fasthttpcors.Options{
		AllowedOrigins: []string{"*"},
		AllowedHeaders: []string{"*"},
		AllowedMethods: []string{"GET", "PUT"},
	})
	Cors = corsHandler.CorsMiddleware
}
