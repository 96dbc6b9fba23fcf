/*
Package ports defines the driven ports (interfaces) for the Kiln engine.

These interfaces decouple the core from its collaborators, such as the
transactional execution environment whose "inside a transaction" predicate
the resolution guard queries.

# Key Interfaces

  - TransactionProbe: Reports whether the current call stack is inside a retryable atomic block.
*/
package ports
