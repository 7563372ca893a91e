// Package postgres implements the trust-core stores on Postgres through GORM.
//
// [MethodRepository] satisfies authmethod.Store; its UpdateIf holds a row lock
// (SELECT ... FOR UPDATE) for the duration of the predicate and mutation, which
// is what makes the OTP daily counter and passkey sign-count updates atomic
// across processes. [DeviceRepository], [PreferenceRepository] and
// [SessionRepository] back device.Store, mfa.PreferenceStore and
// session.Backend.
//
// Schema lives in embedded SQL files applied by [RunMigrations]. Driver errors
// wrap autherr.ErrServiceUnavailable; missing rows wrap autherr.ErrNotFound.
package postgres
