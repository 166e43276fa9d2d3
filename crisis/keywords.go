package crisis

// Keyword tiers are tunable data, not logic. Each entry is a word-boundary
// pattern with a fixed weight that feeds the capped score in scorer.go.
// English plus Hindi/Hinglish phrasings are covered in every tier.

type keywordEntry struct {
	pattern string
	weight  float64
}

var severeKeywords = []keywordEntry{
	// suicide ideation
	{`\b(kill myself|end my life|suicide|suicidal|want to die|going to die)\b`, 9},
	{`\b(no reason to live|better off dead|ending it all)\b`, 9},
	{`\b(take my life|don't want to live|tired of living|done with life)\b`, 9},
	{`\b(goodbye world|this is my last|final message|leaving forever)\b`, 9},

	// self harm
	{`\b(cut myself|hurt myself|harm myself|self harm|self-harm|cutting)\b`, 9},
	{`\b(slash my wrists|slit my wrists|hurt my body)\b`, 9},

	// concrete method or plan, scored at the top of the scale
	{`\b(overdose|pills to end|jump off|hang myself|hanging myself)\b`, 10},
	{`\b(knife to|gun to|poison myself|drown myself)\b`, 10},
	{`\b(planning suicide|suicide note|ready to die)\b`, 10},

	// final goodbyes
	{`\b(goodbye forever|this is goodbye|final goodbye|last words)\b`, 9},
	{`\b(saying goodbye|won't see you again|this is the end)\b`, 9},

	// direct expressions
	{`\b(kill me|death wish|end it all)\b`, 9},

	// Hindi / Hinglish
	{`\b(marna chahta|mar jaana chahta|zinda nahi rehna|khud ko khatam)\b`, 9},
	{`\b(suicide kar lunga|maar dalunga khud ko)\b`, 9},
}

var moderateKeywords = []keywordEntry{
	// hopelessness
	{`\b(hopeless|no hope|nothing matters|pointless|worthless|useless)\b`, 6},
	{`\b(life is meaningless|no purpose|empty inside|hollow)\b`, 6},

	// despair
	{`\b(give up|giving up|can't take it|too much pain|unbearable)\b`, 6},
	{`\b(can't cope|breaking down|falling apart|lost all hope)\b`, 6},

	// isolation
	{`\b(everyone hates me|nobody cares|all alone|so alone|completely alone)\b`, 6},
	{`\b(no one understands|nobody loves me|isolated|abandoned)\b`, 6},

	// self-deprecation
	{`\b(want to disappear|wish i was dead|wish i wasn't born)\b`, 6},
	{`\b(burden to everyone|better without me|shouldn't exist)\b`, 6},
	{`\b(hate myself|disgusted with myself|worthless person)\b`, 6},

	// desperation
	{`\b(can't go on|can't continue|can't handle)\b`, 6},
	{`\b(want it to stop|make it stop|end the pain|escape this)\b`, 6},

	// academic and social pressure
	{`\b(failed everything|ruined my life|destroyed everything|no future)\b`, 6},
	{`\b(disappointed everyone|let everyone down|can't face anyone)\b`, 6},

	// Hindi / Hinglish
	{`\b(koi umeed nahi|sab khatam|jeena mushkil|bardaasht nahi)\b`, 6},
	{`\b(koi parwaah nahi|akela hun|koi nahi samajhta)\b`, 6},
}

var lowKeywords = []keywordEntry{
	// distress
	{`\b(depressed|very sad|extremely sad|feeling down|really low)\b`, 2},
	{`\b(anxious|stressed out|overwhelmed|can't sleep|sleepless)\b`, 2},
	{`\b(panic attack|anxiety attack|breaking point)\b`, 2},

	// emotional pain
	{`\b(hurting so much|suffering|aching|broken)\b`, 2},
	{`\b(crying all day|can't stop crying|tears won't stop)\b`, 2},

	// warning signs
	{`\b(losing interest|don't care anymore|numb|empty|void)\b`, 2},
	{`\b(tired of trying|exhausted|drained|burnt out)\b`, 2},
}
