package database

// Iterator represents the iteration implementation for walking through the
// blocks of a chain.
type Iterator struct {
	chain   *Chain // Access to the chain.
	current int    // Current block position being iterated over.
	eoc     bool   // Represents the iterator is at the end of the chain.
}

// Next retrieves the next block from the chain. Once the end of the chain
// is reached ErrBlockNotFound is returned and Done reports true.
func (it *Iterator) Next() (*Block, error) {
	if it.eoc {
		return nil, ErrBlockNotFound
	}

	block, err := it.chain.Block(it.current)
	if err != nil {
		it.eoc = true
		return nil, err
	}

	it.current++

	return block, nil
}

// Done returns the end of chain value.
func (it *Iterator) Done() bool {
	return it.eoc
}
