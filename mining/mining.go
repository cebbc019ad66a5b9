//Package mining provides the common contracts between the main program and
//specific algorithm implementations
package mining

//HashRateReport is sent from the mining routines for giving combined information as output
type HashRateReport struct {
	MinerID int
	//HashRate is in lanes finalized per second
	HashRate float64
}

//Miner declares the common 'Mine' method
type Miner interface {
	Mine()
}
