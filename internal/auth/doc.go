// Package auth implements interactive authorization for the OAuth2 authorization code flow.
//
// [Authorizer] prints the authorization URL, obtains the redirect from a [CallbackSource] and hands
// code and state to the provider's exchange, which enforces the anti-forgery check.
//
// [Prompter] is the default source: the operator pastes the URL their browser landed on. Malformed
// input is reported on the error stream and the prompt repeats.
package auth
