// Package risk decides when a purchase needs step-up authentication and
// adjudicates the step-up ceremony.
//
// Gate applies a configurable amount threshold: transactions at or below
// the threshold pass without friction, transactions above it require a
// successful step-up before approval. WebAuthnProvider implements the
// ceremony using passkeys: assertions are performed out of band against
// the registration and step-up endpoints, and a completed assertion
// grants a short-lived single-use approval that the purchase pipeline
// consumes.
//
// A step-up that cannot be satisfied is a boolean failure, never an
// error: the purchase pipeline treats it as a denial.
package risk
