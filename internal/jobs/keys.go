package jobs

// Keys builds the store keys the pipeline uses:
//
//	{prefix}input:{input_hash}       - ResultRecord mirrored by input hash
//	{prefix}result:{key}             - ResultRecord by job key
//	{prefix}lock:{input_hash}        - processing lock, value = owning job key
//	{prefix}processing:{key}         - processing marker, value = input hash
type Keys struct {
	Prefix string
}

func (k Keys) Input(inputHash string) string { return k.Prefix + "input:" + inputHash }

func (k Keys) Result(key string) string { return k.Prefix + "result:" + key }

func (k Keys) Lock(inputHash string) string { return k.Prefix + "lock:" + inputHash }

func (k Keys) Processing(key string) string { return k.Prefix + "processing:" + key }
