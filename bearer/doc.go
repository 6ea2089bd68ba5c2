// Package bearer turns a verified platform bearer token into a
// [brokerauth.SecurityContext].
//
// Signature verification and claim extraction are delegated entirely to
// github.com/golang-jwt/jwt/v5; this package only maps the verified claims
// onto the pipeline's context fields. It issues nothing and holds no signing
// keys, only verification material.
package bearer
