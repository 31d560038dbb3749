package protocol

// Verbs understood by MginDB.
const (
	VerbSet      = "SET"
	VerbIndices  = "INDICES"
	VerbIncr     = "INCR"
	VerbDecr     = "DECR"
	VerbDel      = "DEL"
	VerbQuery    = "QUERY"
	VerbCount    = "COUNT"
	VerbSchedule = "SCHEDULE"
	VerbSub      = "SUB"
	VerbUnsub    = "UNSUB"
	VerbSubList  = "SUBLIST"
	VerbKeys     = "KEYS"
	VerbRename   = "RENAME"
	VerbFlushAll = "FLUSHALL"
)

// SessionHeader names the handshake header that ties a per-command
// connection to the session that should receive its replies.
const SessionHeader = "X-Mgindb-Session"

// Fixed server texts.
const (
	Welcome        = "MginDB server connected... Welcome!"
	AuthFailed     = "Authentication failed: Incorrect username or password."
	AuthRequired   = "Authentication required but no credentials provided."
	InvalidCommand = "ERROR: Invalid command"
)

type CmdType int

const (
	CmdUnknown CmdType = iota
	CmdSet
	CmdIndices
	CmdIncr
	CmdDecr
	CmdDel
	CmdQuery
	CmdCount
	CmdSchedule
	CmdSub
	CmdUnsub
	CmdSubList
	CmdKeys
	CmdRename
	CmdFlushAll
)

var verbs = map[string]CmdType{
	VerbSet:      CmdSet,
	VerbIndices:  CmdIndices,
	VerbIncr:     CmdIncr,
	VerbDecr:     CmdDecr,
	VerbDel:      CmdDel,
	VerbQuery:    CmdQuery,
	VerbCount:    CmdCount,
	VerbSchedule: CmdSchedule,
	VerbSub:      CmdSub,
	VerbUnsub:    CmdUnsub,
	VerbSubList:  CmdSubList,
	VerbKeys:     CmdKeys,
	VerbRename:   CmdRename,
	VerbFlushAll: CmdFlushAll,
}

// Request is one parsed command line. Args is the raw remainder after the
// verb; each command interprets it with its own grammar.
type Request struct {
	Type CmdType
	Verb string
	Args string
}

// Mutating reports whether the request changes stored data.
func (r Request) Mutating() bool {
	switch r.Type {
	case CmdSet, CmdIncr, CmdDecr, CmdDel, CmdRename, CmdFlushAll:
		return true
	default:
		return false
	}
}

// Credentials is the first frame a client sends on a new connection.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Push is a subscription notification sent to subscribed sessions.
type Push struct {
	Key  string `json:"key"`
	Data any    `json:"data"`
}
