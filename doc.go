/*
redirect is a package for processing OAuth2/OIDC authorization redirects
("callbacks") on behalf of a web application that delegates login to an
external identity provider.

Primary types provided by the package

* Processor: validates an inbound callback request against the single-use,
session-bound state (CSRF/replay protection) and resolves its grant: for the
authorization code grant it exchanges the code and fetches the user id
through an IdentityClient; for the implicit grant it verifies the signed
id_token locally with a Verifier. Its AuthURL method produces the outbound
redirect URL to the provider, issuing the state and nonce the returning
callback will be validated against.

* Token: the immutable, canonical token record a resolved callback produces
(access_token, id_token, refresh_token, token_type, expires_in). Secrets and
tokens redact themselves when printed or marshaled.

* Verifier: validates a signed id_token (HS256 with the client secret, or
RS256 with a resolved public key/certificate) including its issuer,
audience, expiry and nonce, and extracts the verified subject.

* SessionStore: the session-scoped key/value collaborator the single-use
state and nonce are bound against. MemoryStore is an in-process
implementation for CLI flows and tests.

* IdentityClient: the identity provider collaborator for the code exchange
and user-info calls. The idp package provides a reference implementation.

The callback package provides http.HandlerFunc glue for serving a
Processor behind an HTTP callback endpoint.
*/
package redirect
