//go:build !race

package identity

func tokenHashCost() int {
	return 12
}
