package dbutils

// Buckets of the plain-state schema. "Plain" means keys are not hashed:
// accounts are keyed by address, storage by address|incarnation|location.

var (
	// PlainStateBucket
	// Contains Accounts:
	//   key - address (unhashed)
	//   value - account encoded for storage
	// Contains Storage:
	//   key - address (unhashed) + incarnation + storage key (unhashed)
	//   value - storage value (zero-stripped)
	PlainStateBucket = "PLAIN-CST2"

	// PlainContractCodeBucket -
	// key - address+incarnation
	// value - code hash
	PlainContractCodeBucket = "PLAIN-contractCode"

	// PlainAccountChangeSetBucket keeps changesets of accounts ("plain state")
	// key - encoded timestamp(block number)
	// value - encoded ChangeSet{k - address v - account(encoded).
	PlainAccountChangeSetBucket = "PLAIN-ACS"

	// PlainStorageChangeSetBucket keeps changesets of storage ("plain state")
	// key - encoded timestamp(block number)
	// value - encoded ChangeSet{k - plainCompositeKey(for storage) v - originalValue(common.Hash)}.
	PlainStorageChangeSetBucket = "PLAIN-SCS"

	// CodeBucket
	// key - code hash
	// value - contract code
	CodeBucket = "CODE"

	// IncarnationMapBucket for deleted accounts
	// key - address
	// value - previous incarnation (uint64 big endian)
	IncarnationMapBucket = "incarnationMap"

	// HeadersBucket
	// key - block number (uint64 big endian) + block hash
	// value - header (opaque to this layer)
	HeadersBucket = "h"
)

// Buckets is the list of buckets the execution core touches. In-memory
// databases pre-create them; persistent stores declare them at open.
var Buckets = []string{
	PlainStateBucket,
	PlainContractCodeBucket,
	PlainAccountChangeSetBucket,
	PlainStorageChangeSetBucket,
	CodeBucket,
	IncarnationMapBucket,
	HeadersBucket,
}
