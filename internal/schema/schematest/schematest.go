// Package schematest provides a shared schema for package tests.
package schematest

import "github.com/hanpama/graphcore/internal/schema"

// SDL describes a small pet store with interfaces, unions, enums and inputs.
const SDL = `
schema {
  query: Query
  mutation: Mutation
  subscription: Subscription
}

interface Being {
  name(surname: Boolean): String
}

interface Pet implements Being {
  name(surname: Boolean): String
}

enum DogCommand {
  SIT
  HEEL
  DOWN
}

type Dog implements Being & Pet {
  name(surname: Boolean): String
  nickname: String
  barkVolume: Int
  barks: Boolean
  doesKnowCommand(dogCommand: DogCommand): Boolean
  isHouseTrained(atOtherHomes: Boolean = true): Boolean
  isAtLocation(x: Int, y: Int): Boolean
  owner: Human
}

type Cat implements Being & Pet {
  name(surname: Boolean): String
  nickname: String
  meows: Boolean
  meowVolume: Int
}

union CatOrDog = Cat | Dog

type Human implements Being {
  name(surname: Boolean): String
  pets: [Pet]
  relatives: [Human!]
  iq: Int
}

enum FurColor {
  BROWN
  BLACK
  TAN
  SPOTTED
}

input ComplexInput {
  requiredField: Boolean!
  nonNullField: Boolean! = false
  intField: Int
  stringField: String
  booleanField: Boolean
  stringListField: [String]
}

input PetFilter {
  name: String
  color: FurColor
  limit: Int = 10
}

type ComplicatedArgs {
  intArgField(intArg: Int): String
  nonNullIntArgField(nonNullIntArg: Int!): String
  stringArgField(stringArg: String): String
  booleanArgField(booleanArg: Boolean): String
  enumArgField(enumArg: FurColor): String
  floatArgField(floatArg: Float): String
  idArgField(idArg: ID): String
  stringListArgField(stringListArg: [String]): String
  complexArgField(complexArg: ComplexInput): String
  multipleReqs(req1: Int!, req2: Int!): String
  multipleOpts(opt1: Int = 0, opt2: Int = 0): String
}

type Query {
  human(id: ID): Human
  dog: Dog
  cat: Cat
  pet: Pet
  catOrDog: CatOrDog
  pets(filter: PetFilter, first: Int = 10): [Pet]
  complicatedArgs: ComplicatedArgs
  hello(name: String): String
}

type Mutation {
  renamePet(id: ID!, name: String!): Pet
}

type Subscription {
  petAdded: Pet
}
`

// Pets builds the shared schema and panics if it cannot be loaded.
func Pets() *schema.Schema {
	s, err := schema.BuildFromSDL("pets", SDL)
	if err != nil {
		panic(err)
	}
	return s
}
