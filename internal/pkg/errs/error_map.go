package errs

import "net/http"

var errorMap = map[int]CustomError{
	ErrInvalidParams:  {Code: ErrInvalidParams, Kind: KindValidation, Message: "invalid request: %v"},
	ErrInvalidAmount:  {Code: ErrInvalidAmount, Kind: KindValidation, Message: "amount must be between 1 and %d"},
	ErrFileUnreadable: {Code: ErrFileUnreadable, Kind: KindValidation, Message: "cannot read file %q"},

	ErrNetwork:             {Code: ErrNetwork, Kind: KindTransport, Message: "%s: network error"},
	ErrBadResponse:         {Code: ErrBadResponse, Kind: KindTransport, Message: "%s: unreadable response"},
	ErrChannelNotConnected: {Code: ErrChannelNotConnected, Kind: KindTransport, Message: "realtime channel is not connected"},
	ErrChannelClosed:       {Code: ErrChannelClosed, Kind: KindTransport, Message: "realtime channel is closed"},

	ErrUnauthorized:     {Code: ErrUnauthorized, Kind: KindAuthorization, Message: "%s: %s", Status: http.StatusUnauthorized},
	ErrPermissionDenied: {Code: ErrPermissionDenied, Kind: KindAuthorization, Message: "permission denied", Status: http.StatusForbidden},
	ErrNotLoggedIn:      {Code: ErrNotLoggedIn, Kind: KindAuthorization, Message: "not logged in"},

	ErrRejected: {Code: ErrRejected, Kind: KindRejected, Message: "%s: %s"},
	ErrNotFound: {Code: ErrNotFound, Kind: KindRejected, Message: "%s: not found", Status: http.StatusNotFound},

	ErrUnknown: {Code: ErrUnknown, Kind: KindUnknown, Message: "unexpected error"},
}
