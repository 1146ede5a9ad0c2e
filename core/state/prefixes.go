package state

// Storage key prefixes. Every key is keccak256(prefix || suffix) before it
// reaches the trie.
var (
	tokenPrefix        = []byte("token:")
	tokenListPrefix    = []byte("token-list")
	balancePrefix      = []byte("balance:")
	vaultRecordPrefix  = []byte("vault:")
	streamRecordPrefix = []byte("stream:")
	bountyRecordPrefix = []byte("bounty:")
)
