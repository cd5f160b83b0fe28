package interp

import (
	"sync"

	"gonum.org/v1/gonum/mat"
)

// matrixPool keeps the work matrices of spline construction for reuse.
// Tables are often built per request, so the tridiagonal system and its
// vectors are recycled instead of reallocated.
type matrixPool struct {
	mu   sync.Mutex
	syms []*mat.SymDense
	vecs []*mat.VecDense
}

var workspace = newMatrixPool()

func newMatrixPool() *matrixPool {
	return &matrixPool{
		syms: make([]*mat.SymDense, 0, 4),
		vecs: make([]*mat.VecDense, 0, 8),
	}
}

// getSymDense returns a zeroed n×n symmetric matrix.
func (p *matrixPool) getSymDense(n int) *mat.SymDense {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.syms) > 0 {
		m := p.syms[len(p.syms)-1]
		p.syms = p.syms[:len(p.syms)-1]
		m.Reset()
		m.ReuseAsSym(n)
		return m
	}
	return mat.NewSymDense(n, nil)
}

func (p *matrixPool) putSymDense(m *mat.SymDense) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.syms = append(p.syms, m)
}

// getVecDense returns a zeroed vector of length n.
func (p *matrixPool) getVecDense(n int) *mat.VecDense {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.vecs) > 0 {
		v := p.vecs[len(p.vecs)-1]
		p.vecs = p.vecs[:len(p.vecs)-1]
		v.Reset()
		v.ReuseAsVec(n)
		return v
	}
	return mat.NewVecDense(n, nil)
}

func (p *matrixPool) putVecDense(v *mat.VecDense) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.vecs = append(p.vecs, v)
}
