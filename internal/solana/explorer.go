package solana

import (
	"net/url"

	"github.com/blocto/solana-go-sdk/common"
)

const explorerBase = "https://explorer.solana.com"

// Explorer renders Solana Explorer links for one cluster.
type Explorer struct {
	query string
}

func NewExplorer(cluster string) Explorer {
	if cluster == "" || cluster == "mainnet-beta" {
		return Explorer{}
	}
	return Explorer{query: "?cluster=" + url.QueryEscape(cluster)}
}

func (e Explorer) Address(addr string) string {
	return explorerBase + "/address/" + addr + e.query
}

func (e Explorer) Tokens(addr string) string {
	return explorerBase + "/address/" + addr + "/tokens" + e.query
}

func (e Explorer) Tx(sig string) string {
	return explorerBase + "/tx/" + sig + e.query
}

// Treasury derives the program-owned deposit address for seed.
func Treasury(programID, seed string) (string, error) {
	program, err := ParseAddress(programID)
	if err != nil {
		return "", err
	}
	pda, _, err := common.FindProgramAddress([][]byte{[]byte(seed)}, program)
	if err != nil {
		return "", err
	}
	return pda.ToBase58(), nil
}
