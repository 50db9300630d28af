package sparsecoll

import (
	"context"

	"github.com/ChrisOng2/locality-aware/config"
	"github.com/ChrisOng2/locality-aware/xcomm"
)

// Algorithm selects which fixed-size AlltoallCRS implementation to run.
type Algorithm int

const (
	// AlgorithmDefault lets this package choose; for fixed-size exchanges
	// that resolves to AlgorithmRMA unless configuration says otherwise.
	AlgorithmDefault Algorithm = iota
	AlgorithmRMA
	AlgorithmPersonalized
	AlgorithmNonblocking
)

func (a Algorithm) String() string {
	switch a {
	case AlgorithmRMA:
		return "rma"
	case AlgorithmPersonalized:
		return "personalized"
	case AlgorithmNonblocking:
		return "nonblocking"
	default:
		return "default"
	}
}

// AlltoallCRS dispatches to one of the three fixed-size algorithms. All
// three are wire-incompatible with each other: every rank in the group must
// call with the same Algorithm.
func AlltoallCRS(ctx context.Context, send FixedSendPlan, recv *FixedRecvPlan, xc *xcomm.ExtComm, algo Algorithm) error {
	if algo == AlgorithmDefault {
		switch config.Get().DefaultAlgorithm {
		case config.AlgoPersonalized:
			algo = AlgorithmPersonalized
		case config.AlgoNonblocking:
			algo = AlgorithmNonblocking
		default:
			algo = AlgorithmRMA
		}
	}

	switch algo {
	case AlgorithmRMA:
		if config.Get().RMAMarkerByDefault {
			return AlltoallCRSRMA(ctx, send, recv, xc, WithPresenceMarker())
		}
		return AlltoallCRSRMA(ctx, send, recv, xc)
	case AlgorithmNonblocking:
		return AlltoallCRSNonblocking(ctx, send, recv, xc)
	case AlgorithmPersonalized:
		return AlltoallCRSPersonalized(ctx, send, recv, xc)
	default:
		return &InvariantError{Msg: "unknown algorithm"}
	}
}

// AlltoallvCRS implements the variable-size collective. Only the
// personalized algorithm has a variable-size form in this library.
func AlltoallvCRS(ctx context.Context, send VarSendPlan, recv *VarRecvPlan, xc *xcomm.ExtComm) error {
	return AlltoallvCRSPersonalized(ctx, send, recv, xc)
}
