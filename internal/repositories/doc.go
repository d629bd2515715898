// package repositories provides sqlite persistence for transfer history,
// library snapshots and sync audit rows.
package repositories
