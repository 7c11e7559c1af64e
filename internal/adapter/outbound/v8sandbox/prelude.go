package v8sandbox

// preludeScript defines the safe runtime helpers the transformer targets
// (§4.3.3): bounded iteration, bounded string build/template, mediated
// tool call, mediated parallel, and rate-limited console. Each helper
// delegates its bookkeeping (iteration counts, tool-call counts, console
// budgets, cumulative bytes) to a __host_* function bound from Go by
// bindHostFunctions; the helpers themselves hold no state of their own,
// matching §5's "no mutable global state spans sessions."
const preludeScript = `(function(global) {
  global.__ag_break = Symbol("__ag_break");
  global.__ag_continue = Symbol("__ag_continue");

  global.__safe_for = async function(initFn, testFn, updateFn, bodyFn) {
    initFn();
    while (testFn()) {
      __host_checkIteration();
      const r = await bodyFn();
      if (r === __ag_break) break;
      updateFn();
    }
  };

  global.__safe_forOf = async function(iterable, bodyFn) {
    for (const item of iterable) {
      __host_checkIteration();
      const r = await bodyFn(item);
      if (r === __ag_break) break;
    }
  };

  global.__safe_forIn = async function(obj, bodyFn) {
    for (const key in obj) {
      __host_checkIteration();
      const r = await bodyFn(key);
      if (r === __ag_break) break;
    }
  };

  global.__safe_while = async function(testFn, bodyFn) {
    while (testFn()) {
      __host_checkIteration();
      const r = await bodyFn();
      if (r === __ag_break) break;
    }
  };

  global.__safe_doWhile = async function(bodyFn, testFn) {
    do {
      __host_checkIteration();
      const r = await bodyFn();
      if (r === __ag_break) break;
    } while (testFn());
  };

  global.__safe_concat = function(left, right) {
    return __host_concat(left, right);
  };

  global.__safe_template = function(quasis, ...exprs) {
    let out = quasis[0];
    for (let i = 0; i < exprs.length; i++) {
      out = __host_concat(out, String(exprs[i]));
      out = __host_concat(out, quasis[i + 1]);
    }
    return out;
  };

  global.__safe_console = {
    log: function(...args) { __host_console("log", args); },
    warn: function(...args) { __host_console("warn", args); },
    error: function(...args) { __host_console("error", args); },
  };
  global.console = global.__safe_console;

  global.__safe_callTool = async function(name, args) {
    return __host_callTool(name, args);
  };
  global.callTool = global.__safe_callTool;

  global.__safe_sidecarGet = function(handle) {
    return __host_sidecarGet(handle);
  };

  global.parallel = async function(promises) {
    __host_checkConcurrency(promises.length);
    for (const p of promises) {
      if (!(p instanceof Promise)) {
        throw new TypeError("parallel() requires an array of promises, not a function or plain value");
      }
    }
    return Promise.all(promises);
  };
})(globalThis);
`

// entryScript wires __ag_main's outcome to the host-bound resolve/reject
// callbacks. Run after the prelude, the proxy factory, and the
// transformed user source have all been compiled into the context.
const entryScript = `(async () => {
  try {
    const value = await __ag_main();
    __host_resolve(value);
  } catch (e) {
    __host_reject(e);
  }
})();
`
