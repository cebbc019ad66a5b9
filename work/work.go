//Package work provides the template source and match sink the miner runs
//against, and common code for specific source implementations.
package work

//Match is one lane whose final digest satisfied the target.
type Match struct {
	//Nonce is the 32 bit nonce that was patched into the template.
	Nonce uint32
	//DigestTop64 is the top 64 bits of the lane's final 32 byte digest.
	DigestTop64 uint64
}

//MatchReporter defines the required method a source should implement for
//miners to be able to report digests that satisfied the target
type MatchReporter interface {
	//SubmitMatch reports a winning nonce
	SubmitMatch(m Match) (err error)
}

//TemplateProvider supplies block templates for a miner to mine on
type TemplateProvider interface {
	//TemplateForWork provides the shared template and the 64 bit target the
	//top bits of each final digest are compared against
	TemplateForWork() (template []byte, target uint64, err error)
}

//Source defines the interface towards a work provider
type Source interface {
	TemplateProvider
	MatchReporter
	//Start prepares the source; it can be empty for a local source or
	//maintain a connection for a pool implementation
	Start()
}
