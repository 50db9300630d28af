package sparsecoll_test

import (
	"context"
	"encoding/binary"
	"sync"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/ginkgo/extensions/table"
	. "github.com/onsi/gomega"

	"github.com/ChrisOng2/locality-aware/dtype"
	"github.com/ChrisOng2/locality-aware/sparsecoll"
	"github.com/ChrisOng2/locality-aware/xcomm"
	"github.com/ChrisOng2/locality-aware/xnet"
	"github.com/ChrisOng2/locality-aware/xnet/simulator"
)

// allFixedAlgorithms exercises every fixed-size scenario against all three
// wire-incompatible algorithms, so a regression in any one of them shows up
// here rather than only in whichever algorithm happens to be the default.
var allFixedAlgorithms = []sparsecoll.Algorithm{
	sparsecoll.AlgorithmRMA,
	sparsecoll.AlgorithmPersonalized,
	sparsecoll.AlgorithmNonblocking,
}

func int32Bytes(vals ...int32) []byte {
	buf := make([]byte, 4*len(vals))
	for i, v := range vals {
		binary.LittleEndian.PutUint32(buf[i*4:], uint32(v))
	}
	return buf
}

func bytesToInt32s(b []byte) []int32 {
	out := make([]int32, len(b)/4)
	for i := range out {
		out[i] = int32(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return out
}

func newXcomms(groups []xnet.Group) []*xcomm.ExtComm {
	xcs := make([]*xcomm.ExtComm, len(groups))
	for i, g := range groups {
		xcs[i] = xcomm.New(g, 0)
	}
	return xcs
}

// runFixed runs one AlltoallCRS call (one count per message) concurrently
// across every rank and returns each rank's filled receive plan. recvNRecv
// lets a caller pin a known n_recv per rank instead of asking the algorithm
// to discover it (RecvCountUnknown everywhere by default).
func runFixed(xcs []*xcomm.ExtComm, sends []sparsecoll.FixedSendPlan, count int, algo sparsecoll.Algorithm, recvNRecv []int) []*sparsecoll.FixedRecvPlan {
	size := len(xcs)
	recvs := make([]*sparsecoll.FixedRecvPlan, size)
	var wg sync.WaitGroup
	for r := 0; r < size; r++ {
		nrecv := sparsecoll.RecvCountUnknown
		if recvNRecv != nil {
			nrecv = recvNRecv[r]
		}
		recvs[r] = &sparsecoll.FixedRecvPlan{
			NRecv: nrecv,
			Src:   make([]xnet.Rank, size),
			Count: count,
			DType: dtype.Int32,
			Vals:  make([]byte, size*count*4),
		}
		wg.Add(1)
		go func(r int) {
			defer wg.Done()
			defer GinkgoRecover()
			Expect(sparsecoll.AlltoallCRS(context.Background(), sends[r], recvs[r], xcs[r], algo)).To(Succeed())
		}(r)
	}
	wg.Wait()
	return recvs
}

func freshFixedRun(size int, sends []sparsecoll.FixedSendPlan, count int, algo sparsecoll.Algorithm) []*sparsecoll.FixedRecvPlan {
	return runFixed(newXcomms(simulator.New(size)), sends, count, algo, nil)
}

// algorithmEntries builds one DescribeTable Entry per allFixedAlgorithms
// member, named after its String().
func algorithmEntries() []TableEntry {
	entries := make([]TableEntry, len(allFixedAlgorithms))
	for i, algo := range allFixedAlgorithms {
		entries[i] = Entry(algo.String(), algo)
	}
	return entries
}

var _ = Describe("AlltoallCRS", func() {
	DescribeTable("scenario A: three-process chain",
		func(algo sparsecoll.Algorithm) {
			sends := []sparsecoll.FixedSendPlan{
				{Dest: []xnet.Rank{1}, Count: 1, DType: dtype.Int32, Vals: int32Bytes(7)},
				{Dest: []xnet.Rank{2}, Count: 1, DType: dtype.Int32, Vals: int32Bytes(11)},
				{Dest: nil, Count: 1, DType: dtype.Int32, Vals: nil},
			}
			recvs := freshFixedRun(3, sends, 1, algo)

			Expect(recvs[0].NRecv).To(Equal(0))

			Expect(recvs[1].NRecv).To(Equal(1))
			Expect(recvs[1].Src[0]).To(Equal(xnet.Rank(0)))
			Expect(bytesToInt32s(recvs[1].Vals[:4])).To(Equal([]int32{7}))

			Expect(recvs[2].NRecv).To(Equal(1))
			Expect(recvs[2].Src[0]).To(Equal(xnet.Rank(1)))
			Expect(bytesToInt32s(recvs[2].Vals[:4])).To(Equal([]int32{11}))
		},
		algorithmEntries()...,
	)

	DescribeTable("scenario B: ring",
		func(algo sparsecoll.Algorithm) {
			const size = 4
			sends := make([]sparsecoll.FixedSendPlan, size)
			for r := 0; r < size; r++ {
				dest := (r + 1) % size
				sends[r] = sparsecoll.FixedSendPlan{
					Dest: []xnet.Rank{xnet.Rank(dest)}, Count: 1, DType: dtype.Int32,
					Vals: int32Bytes(int32(r + 1)),
				}
			}
			recvs := freshFixedRun(size, sends, 1, algo)

			for r := 0; r < size; r++ {
				prev := (r - 1 + size) % size
				Expect(recvs[r].NRecv).To(Equal(1))
				Expect(recvs[r].Src[0]).To(Equal(xnet.Rank(prev)))
				Expect(bytesToInt32s(recvs[r].Vals[:4])).To(Equal([]int32{int32(prev + 1)}))
			}
		},
		algorithmEntries()...,
	)

	DescribeTable("scenario C: many-to-one",
		func(algo sparsecoll.Algorithm) {
			const size = 5
			sends := make([]sparsecoll.FixedSendPlan, size)
			sends[0] = sparsecoll.FixedSendPlan{Count: 1, DType: dtype.Int32}
			for r := 1; r < size; r++ {
				sends[r] = sparsecoll.FixedSendPlan{
					Dest: []xnet.Rank{0}, Count: 1, DType: dtype.Int32, Vals: int32Bytes(int32(r)),
				}
			}
			recvs := freshFixedRun(size, sends, 1, algo)

			Expect(recvs[0].NRecv).To(Equal(4))
			var srcs []int
			var vals []int32
			for i := 0; i < recvs[0].NRecv; i++ {
				srcs = append(srcs, int(recvs[0].Src[i]))
				vals = append(vals, bytesToInt32s(recvs[0].Vals[i*4:(i+1)*4])[0])
			}
			Expect(srcs).To(ConsistOf(1, 2, 3, 4))
			Expect(vals).To(ConsistOf(int32(1), int32(2), int32(3), int32(4)))

			for r := 1; r < size; r++ {
				Expect(recvs[r].NRecv).To(Equal(0))
			}

			// Symmetry law: total sends == total receives.
			totalSend, totalRecv := 0, 0
			for r := 0; r < size; r++ {
				totalSend += len(sends[r].Dest)
				totalRecv += recvs[r].NRecv
			}
			Expect(totalSend).To(Equal(totalRecv))
		},
		algorithmEntries()...,
	)

	DescribeTable("scenario E: empty collective",
		func(algo sparsecoll.Algorithm) {
			const size = 3
			sends := make([]sparsecoll.FixedSendPlan, size)
			for r := range sends {
				sends[r] = sparsecoll.FixedSendPlan{Count: 1, DType: dtype.Int32}
			}
			recvs := freshFixedRun(size, sends, 1, algo)
			for r := 0; r < size; r++ {
				Expect(recvs[r].NRecv).To(Equal(0))
			}
		},
		algorithmEntries()...,
	)

	It("scenario F: personalized matches whether n_recv is known or discovered", func() {
		const size = 4
		sends := make([]sparsecoll.FixedSendPlan, size)
		for r := 0; r < size; r++ {
			dest := (r + 1) % size
			sends[r] = sparsecoll.FixedSendPlan{
				Dest: []xnet.Rank{xnet.Rank(dest)}, Count: 1, DType: dtype.Int32,
				Vals: int32Bytes(int32(r + 1)),
			}
		}

		discovered := runFixed(newXcomms(simulator.New(size)), sends, 1, sparsecoll.AlgorithmPersonalized, nil)
		known := runFixed(newXcomms(simulator.New(size)), sends, 1, sparsecoll.AlgorithmPersonalized,
			[]int{1, 1, 1, 1})

		for r := 0; r < size; r++ {
			Expect(discovered[r].NRecv).To(Equal(known[r].NRecv))
			Expect(discovered[r].Src).To(Equal(known[r].Src))
			Expect(discovered[r].Vals[:4]).To(Equal(known[r].Vals[:4]))
		}
	})

	It("round-trip: a pair that sends to each other both observe the other's payload (invariant 3)", func() {
		xcs := newXcomms(simulator.New(2))
		sends := []sparsecoll.FixedSendPlan{
			{Dest: []xnet.Rank{1}, Count: 1, DType: dtype.Int32, Vals: int32Bytes(100)},
			{Dest: []xnet.Rank{0}, Count: 1, DType: dtype.Int32, Vals: int32Bytes(200)},
		}
		recvs := runFixed(xcs, sends, 1, sparsecoll.AlgorithmPersonalized, nil)

		Expect(recvs[0].NRecv).To(Equal(1))
		Expect(recvs[0].Src[0]).To(Equal(xnet.Rank(1)))
		Expect(bytesToInt32s(recvs[0].Vals[:4])).To(Equal([]int32{200}))

		Expect(recvs[1].NRecv).To(Equal(1))
		Expect(recvs[1].Src[0]).To(Equal(xnet.Rank(0)))
		Expect(bytesToInt32s(recvs[1].Vals[:4])).To(Equal([]int32{100}))
	})

	DescribeTable("idempotence: two successive calls on the same handle agree (invariant 4)",
		func(algo sparsecoll.Algorithm) {
			const size = 4
			sends := make([]sparsecoll.FixedSendPlan, size)
			for r := 0; r < size; r++ {
				dest := (r + 1) % size
				sends[r] = sparsecoll.FixedSendPlan{
					Dest: []xnet.Rank{xnet.Rank(dest)}, Count: 1, DType: dtype.Int32,
					Vals: int32Bytes(int32(r + 1)),
				}
			}
			xcs := newXcomms(simulator.New(size))

			first := runFixed(xcs, sends, 1, algo, nil)
			second := runFixed(xcs, sends, 1, algo, nil)

			for r := 0; r < size; r++ {
				Expect(second[r].NRecv).To(Equal(first[r].NRecv))
				Expect(second[r].Src).To(Equal(first[r].Src))
				Expect(second[r].Vals).To(Equal(first[r].Vals))
			}
		},
		algorithmEntries()...,
	)
})

var _ = Describe("AlltoallvCRS", func() {
	// runVar drives one variable-size round across every rank. Only the
	// personalized algorithm has a variable-size form, so unlike the
	// fixed-size scenarios above this isn't run through a table of
	// algorithms.
	runVar := func(size int, sends []sparsecoll.VarSendPlan, recvSizeTotal []int) []*sparsecoll.VarRecvPlan {
		groups := simulator.New(size)
		recvs := make([]*sparsecoll.VarRecvPlan, size)
		var wg sync.WaitGroup
		for r := 0; r < size; r++ {
			total := sparsecoll.RecvCountUnknown
			if recvSizeTotal != nil {
				total = recvSizeTotal[r]
			}
			recvs[r] = &sparsecoll.VarRecvPlan{
				RecvSizeTotal: total,
				Src:           make([]xnet.Rank, size),
				RecvCounts:    make([]int, size),
				RecvDispls:    make([]int, size+1),
				DType:         dtype.Int32,
				Vals:          make([]byte, size*size*4),
			}
			wg.Add(1)
			xc := xcomm.New(groups[r], 0)
			go func(r int, xc *xcomm.ExtComm) {
				defer wg.Done()
				defer GinkgoRecover()
				Expect(sparsecoll.AlltoallvCRS(context.Background(), sends[r], recvs[r], xc)).To(Succeed())
			}(r, xc)
		}
		wg.Wait()
		return recvs
	}

	It("scenario D: variable-size exchange", func() {
		sends := []sparsecoll.VarSendPlan{
			{
				Dest: []xnet.Rank{1, 2}, SendCounts: []int{3, 1}, SendDispls: []int{0, 3},
				DType: dtype.Int32, Vals: int32Bytes(1, 2, 3, 9),
			},
			{
				Dest: []xnet.Rank{0}, SendCounts: []int{2}, SendDispls: []int{0},
				DType: dtype.Int32, Vals: int32Bytes(5, 5),
			},
			{DType: dtype.Int32},
		}
		recvs := runVar(3, sends, nil)

		Expect(recvs[0].NRecv).To(Equal(1))
		Expect(recvs[0].Src[0]).To(Equal(xnet.Rank(1)))
		Expect(recvs[0].RecvCounts[0]).To(Equal(2))
		Expect(bytesToInt32s(recvs[0].Vals[:8])).To(Equal([]int32{5, 5}))

		Expect(recvs[1].NRecv).To(Equal(1))
		Expect(recvs[1].Src[0]).To(Equal(xnet.Rank(0)))
		Expect(recvs[1].RecvCounts[0]).To(Equal(3))
		Expect(bytesToInt32s(recvs[1].Vals[:12])).To(Equal([]int32{1, 2, 3}))

		Expect(recvs[2].NRecv).To(Equal(1))
		Expect(recvs[2].Src[0]).To(Equal(xnet.Rank(0)))
		Expect(recvs[2].RecvCounts[0]).To(Equal(1))
		Expect(bytesToInt32s(recvs[2].Vals[:4])).To(Equal([]int32{9}))

		// Variable-size consistency: displacements and counts must agree.
		for r := 0; r < 3; r++ {
			Expect(recvs[r].RecvDispls[recvs[r].NRecv]).To(Equal(recvs[r].RecvSizeTotal))
			sum := 0
			for i := 0; i < recvs[r].NRecv; i++ {
				sum += recvs[r].RecvCounts[i]
			}
			Expect(sum).To(Equal(recvs[r].RecvSizeTotal))
		}
	})

	It("scenario F (variable-size): matches whether recv_size_total is known or discovered", func() {
		sends := []sparsecoll.VarSendPlan{
			{
				Dest: []xnet.Rank{1, 2}, SendCounts: []int{3, 1}, SendDispls: []int{0, 3},
				DType: dtype.Int32, Vals: int32Bytes(1, 2, 3, 9),
			},
			{
				Dest: []xnet.Rank{0}, SendCounts: []int{2}, SendDispls: []int{0},
				DType: dtype.Int32, Vals: int32Bytes(5, 5),
			},
			{DType: dtype.Int32},
		}
		discovered := runVar(3, sends, nil)
		known := runVar(3, sends, []int{2, 3, 1})

		for r := 0; r < 3; r++ {
			Expect(discovered[r].NRecv).To(Equal(known[r].NRecv))
			Expect(discovered[r].RecvSizeTotal).To(Equal(known[r].RecvSizeTotal))
			Expect(discovered[r].RecvCounts[:discovered[r].NRecv]).To(Equal(known[r].RecvCounts[:known[r].NRecv]))
		}
	})
})
