// Package shop holds the storefront domain: catalog reads, per-user carts and
// the checkout transaction that turns a cart into a priced, immutable order.
package shop
