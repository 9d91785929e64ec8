package session

import (
	"errors"
	"time"
)

var (
	errAlreadySeated    = errors.New("player is already seated at this table")
	errAlreadyRequested = errors.New("a seat request is already pending for this player")
	errNotInGame        = errors.New("no hand is in progress")
	errUnauthorized     = errors.New("only the host may perform this action")
	errNoSuchPending    = errors.New("no matching pending request")
	errSeatTaken        = errors.New("seat is already occupied")
	errUnknownPlayer    = errors.New("no such player in this session")
)

// nowOrStub is time.Now, pulled out so tests can shadow it without the
// engine ever depending on wall-clock time itself.
var nowOrStub = time.Now
