package errs

// 1xxx: client-side validation, never sent over the network
const (
	// ErrInvalidParams indicates a request failed validation before sending.
	ErrInvalidParams = 1001

	// ErrInvalidAmount indicates an invite amount outside the accepted range.
	ErrInvalidAmount = 1002

	// ErrFileUnreadable indicates a file picked for upload could not be read.
	ErrFileUnreadable = 1003
)

// 2xxx: transport failures
const (
	// ErrNetwork indicates the request never produced an HTTP response.
	ErrNetwork = 2001

	// ErrBadResponse indicates the server answered with a body we could not decode.
	ErrBadResponse = 2002

	// ErrChannelNotConnected indicates an emit was attempted without a joined channel.
	ErrChannelNotConnected = 2003

	// ErrChannelClosed indicates the connection manager was closed for good.
	ErrChannelClosed = 2004
)

// 3xxx: authorization
const (
	// ErrUnauthorized indicates the server refused the session or credentials.
	ErrUnauthorized = 3001

	// ErrPermissionDenied indicates an admin-only action was attempted by a regular user.
	ErrPermissionDenied = 3002

	// ErrNotLoggedIn indicates an action that needs a session was attempted without one.
	ErrNotLoggedIn = 3003
)

// 4xxx: the server understood the request and said no
const (
	// ErrRejected carries the server's own message.
	ErrRejected = 4001

	// ErrNotFound indicates the requested user or resource does not exist.
	ErrNotFound = 4004
)

// 5xxx: unclassified
const (
	// ErrUnknown represents an unclassified failure.
	ErrUnknown = 5000
)
