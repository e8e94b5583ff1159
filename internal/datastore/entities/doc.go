// Package entities defines the GORM entity models for the custody schema.
//
// # Directory Entities
//
//   - District, LocalBody, Warehouse: administrative units and storage sites
//   - PollingStation: commissioning target, numbered per local body
//   - User: custodians with a role and optional warehouse assignment
//
// # Custody Entities
//
//   - Component: a physical EVM unit (CU, BU, DMM, seals)
//   - PairingRecord: grouping key that moves a CU and its DMM, seals and BUs together
//   - Allotment, AllotmentItem: custody transfers between custodians
//   - FLCRecord, FLCBallotUnit: first level check outcomes
//
// # Audit
//
//   - AuditEvent: append-only event log keyed by (entity kind, entity id, sequence)
package entities
