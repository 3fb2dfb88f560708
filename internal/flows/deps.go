package flows

// Deps groups flow dependency sets. The root engine builds this once and
// delegates request methods to the matching flow implementation.
type Deps struct {
	Register          RegisterDeps
	Login             LoginDeps
	EmailVerification EmailVerificationDeps
	PasswordReset     PasswordResetDeps
	Profile           ProfileDeps
	Validate          ValidateDeps
}
