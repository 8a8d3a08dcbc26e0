package evaluation

// BatteryVersion identifies the default battery's contents.
const BatteryVersion = "2024.1"

// DefaultBattery returns the standard five-question battery: three DBMS
// questions covered by the lectures and two out-of-scope questions.
func DefaultBattery() Battery {
	return Battery{
		Version: BatteryVersion,
		Cases: []TestCase{
			{
				Question:       "DBMS mein normalization kya hai?",
				ExpectedTopics: "normalization, normal forms, database design, redundancy",
				Category:       "In-Scope (DBMS)",
				InScope:        true,
			},
			{
				Question:       "Explain ACID properties in database",
				ExpectedTopics: "Atomicity, Consistency, Isolation, Durability, transactions",
				Category:       "In-Scope (DBMS)",
				InScope:        true,
			},
			{
				Question:       "What is deadlock in operating systems?",
				ExpectedTopics: "deadlock, resource allocation, circular wait, OS concepts",
				Category:       "Out-of-Scope (OS)",
				InScope:        false,
			},
			{
				Question:       "Explain polymorphism in OOP",
				ExpectedTopics: "polymorphism, compile-time, runtime, method overriding, overloading",
				Category:       "Out-of-Scope (OOP)",
				InScope:        false,
			},
			{
				Question:       "What is indexing in DBMS?",
				ExpectedTopics: "indexing, B-tree, search optimization, database performance",
				Category:       "In-Scope (DBMS)",
				InScope:        true,
			},
		},
	}
}
